package services

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"llmdash/internal/models"

	"gorm.io/gorm"
)

type SystemStats struct {
	CPU    CPUStats    `json:"cpu"`
	Memory MemoryStats `json:"memory"`
	Uptime string      `json:"uptime"`
}

type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
}

type MemoryStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	Cached      uint64  `json:"cached"`
	Buffers     uint64  `json:"buffers"`
	UsedPercent float64 `json:"used_percent"`
}

type SystemService struct {
	db *gorm.DB
}

func NewSystemService(db *gorm.DB) *SystemService {
	return &SystemService{db: db}
}

// GetStats returns current system statistics
func (s *SystemService) GetStats() (*SystemStats, error) {
	cpu, err := s.getCPUStats()
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU stats: %w", err)
	}

	memory, err := s.getMemoryStats()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}

	uptime, err := s.getUptime()
	if err != nil {
		uptime = "unknown"
	}

	return &SystemStats{
		CPU:    *cpu,
		Memory: *memory,
		Uptime: uptime,
	}, nil
}

// Snapshot records the current stats as a SystemMetric event so the
// system analytics domain has data to aggregate.
func (s *SystemService) Snapshot() error {
	stats, err := s.GetStats()
	if err != nil {
		return err
	}

	metric := &models.SystemMetric{
		CPUPercent:      stats.CPU.UsagePercent,
		MemoryPercent:   stats.Memory.UsedPercent,
		MemoryUsedBytes: stats.Memory.Used,
	}
	return s.db.Create(metric).Error
}

// getCPUStats reads CPU usage from /proc/stat
func (s *SystemService) getCPUStats() (*CPUStats, error) {
	// First reading
	file1, err := os.Open("/proc/stat")
	if err != nil {
		return nil, err
	}
	defer file1.Close()

	var user1, nice1, system1, idle1 int64
	scanner := bufio.NewScanner(file1)
	if scanner.Scan() {
		line := scanner.Text()
		fmt.Sscanf(line, "cpu %d %d %d %d", &user1, &nice1, &system1, &idle1)
	}

	// Wait a bit
	time.Sleep(100 * time.Millisecond)

	// Second reading
	file2, err := os.Open("/proc/stat")
	if err != nil {
		return nil, err
	}
	defer file2.Close()

	var user2, nice2, system2, idle2 int64
	scanner2 := bufio.NewScanner(file2)
	if scanner2.Scan() {
		line := scanner2.Text()
		fmt.Sscanf(line, "cpu %d %d %d %d", &user2, &nice2, &system2, &idle2)
	}

	total1 := user1 + nice1 + system1 + idle1
	total2 := user2 + nice2 + system2 + idle2
	totalDelta := total2 - total1
	idleDelta := idle2 - idle1

	var usagePercent float64
	if totalDelta > 0 {
		usagePercent = float64(totalDelta-idleDelta) / float64(totalDelta) * 100
	}

	cores, _ := s.getCPUCores()

	return &CPUStats{
		UsagePercent: usagePercent,
		Cores:        cores,
	}, nil
}

// getCPUCores returns number of CPU cores
func (s *SystemService) getCPUCores() (int, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return 0, err
	}

	content := string(data)
	count := strings.Count(content, "processor")
	return count, nil
}

// getMemoryStats reads memory info from /proc/meminfo
func (s *SystemService) getMemoryStats() (*MemoryStats, error) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stats := &MemoryStats{}
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		value, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		value *= 1024 // Convert from KB to bytes

		switch fields[0] {
		case "MemTotal:":
			stats.Total = value
		case "MemFree:":
			stats.Free = value
		case "MemAvailable:":
			// Use MemAvailable if available (Linux 3.14+)
			stats.Free = value
		case "Cached:":
			stats.Cached = value
		case "Buffers:":
			stats.Buffers = value
		}
	}

	stats.Used = stats.Total - stats.Free - stats.Cached - stats.Buffers
	if stats.Total > 0 {
		stats.UsedPercent = float64(stats.Used) / float64(stats.Total) * 100
	}

	return stats, nil
}

// getUptime reads system uptime
func (s *SystemService) getUptime() (string, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return "", err
	}

	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return "", fmt.Errorf("invalid uptime format")
	}

	uptimeSeconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", err
	}

	uptime := time.Duration(uptimeSeconds) * time.Second
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes), nil
}
