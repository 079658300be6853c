package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"llmdash/internal/config"
	"llmdash/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

var (
	ErrInvalidExportToken = errors.New("invalid or expired export token")
	ErrUnknownExport      = errors.New("unknown export domain")
)

// Exportable domains.
const (
	ExportUsers       = "users"
	ExportAudit       = "audit"
	ExportLLMRequests = "llm_requests"
)

type ExportService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewExportService(db *gorm.DB, cfg *config.Config) *ExportService {
	return &ExportService{db: db, cfg: cfg}
}

func (s *ExportService) secret() []byte {
	secret := s.cfg.Export.Secret
	if secret == "" {
		secret = "llmdash-default-export-secret-change-in-production"
	}
	return []byte(secret)
}

// IssueToken mints a short-lived signed download token for one export
// domain. These are one-shot link credentials, separate from sessions.
func (s *ExportService) IssueToken(domain string) (string, error) {
	switch domain {
	case ExportUsers, ExportAudit, ExportLLMRequests:
	default:
		return "", ErrUnknownExport
	}

	expiresIn, err := time.ParseDuration(s.cfg.Export.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 5 * time.Minute
	}

	claims := jwt.MapClaims{
		"domain": domain,
		"exp":    time.Now().Add(expiresIn).Unix(),
		"iat":    time.Now().Unix(),
		"iss":    s.cfg.Export.Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret())
}

// VerifyToken validates a download token and returns the export domain.
func (s *ExportService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret(), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidExportToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidExportToken
	}
	domain, ok := claims["domain"].(string)
	if !ok || domain == "" {
		return "", ErrInvalidExportToken
	}

	return domain, nil
}

// WriteCSV streams the export for a domain as CSV.
func (s *ExportService) WriteCSV(domain string, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	switch domain {
	case ExportUsers:
		return s.writeUsers(writer)
	case ExportAudit:
		return s.writeAudit(writer)
	case ExportLLMRequests:
		return s.writeLLMRequests(writer)
	default:
		return ErrUnknownExport
	}
}

func (s *ExportService) writeUsers(writer *csv.Writer) error {
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return err
	}

	if err := writer.Write([]string{"id", "username", "email", "role", "active", "created_at"}); err != nil {
		return err
	}
	for _, u := range users {
		record := []string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Username,
			u.Email,
			u.Role,
			strconv.FormatBool(u.Active),
			u.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeAudit(writer *csv.Writer) error {
	var entries []models.AuditLog
	if err := s.db.Order("created_at DESC").Limit(10000).Find(&entries).Error; err != nil {
		return err
	}

	if err := writer.Write([]string{"id", "user_id", "action", "target_id", "details", "ip_address", "created_at"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			strconv.FormatUint(uint64(e.UserID), 10),
			e.Action,
			e.TargetID,
			e.Details,
			e.IPAddress,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeLLMRequests(writer *csv.Writer) error {
	var requests []models.LLMRequest
	if err := s.db.Order("created_at DESC").Limit(10000).Find(&requests).Error; err != nil {
		return err
	}

	if err := writer.Write([]string{"id", "model", "prompt_tokens", "completion_tokens", "duration_ms", "status", "created_at"}); err != nil {
		return err
	}
	for _, r := range requests {
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Model,
			strconv.Itoa(r.PromptTokens),
			strconv.Itoa(r.CompletionTokens),
			strconv.Itoa(r.DurationMs),
			r.Status,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
