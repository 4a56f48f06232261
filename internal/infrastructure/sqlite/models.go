package sqlite

import (
	"time"

	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
)

// ConfigurationModel represents the database row for the configurations table.
// Catalog timestamps are Unix seconds; document timestamps are RFC 3339 text.
type ConfigurationModel struct {
	Identifier    int64
	LogicalName   string
	Description   string
	Author        string
	Version       string
	Provider      string
	Model         string
	DocCreatedAt  *string // nullable
	DocModifiedAt *string // nullable
	CreatedAt     int64
	UpdatedAt     int64
	DeletedAt     *int64 // nullable, set when tombstoned
}

// toConfigurationModel converts a domain Record to a database model.
func toConfigurationModel(rec domain.Record) *ConfigurationModel {
	m := &ConfigurationModel{
		Identifier:  int64(rec.Identifier),
		LogicalName: rec.LogicalName,
		Description: rec.Summary.Description,
		Author:      rec.Summary.Author,
		Version:     rec.Summary.Version,
		Provider:    string(rec.Summary.Provider),
		Model:       rec.Summary.Model,
		CreatedAt:   rec.CreatedAt.Unix(),
		UpdatedAt:   rec.UpdatedAt.Unix(),
	}
	if rec.Summary.Created != nil {
		s := rec.Summary.Created.UTC().Format(time.RFC3339Nano)
		m.DocCreatedAt = &s
	}
	if rec.Summary.Modified != nil {
		s := rec.Summary.Modified.UTC().Format(time.RFC3339Nano)
		m.DocModifiedAt = &s
	}
	return m
}

// toDomain converts a database model to a domain Record. Document is left nil.
func (m *ConfigurationModel) toDomain() domain.Record {
	return domain.Record{
		Identifier:  domain.Identifier(m.Identifier),
		LogicalName: m.LogicalName,
		Summary: domain.Summary{
			Description: m.Description,
			Author:      m.Author,
			Version:     m.Version,
			Provider:    schema.Provider(m.Provider),
			Model:       m.Model,
			Created:     parseOptionalTime(m.DocCreatedAt),
			Modified:    parseOptionalTime(m.DocModifiedAt),
		},
		CreatedAt: time.Unix(m.CreatedAt, 0),
		UpdatedAt: time.Unix(m.UpdatedAt, 0),
	}
}

func parseOptionalTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
