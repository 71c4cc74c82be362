package hubtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
)

// store persists property definitions and groups for the fake portal.
type store struct {
	db *sql.DB
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func encodeOptions(opts []domain.Option) (string, error) {
	if opts == nil {
		opts = []domain.Option{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func decodeOptions(raw sql.NullString) ([]domain.Option, error) {
	if !raw.Valid || raw.String == "" {
		return []domain.Option{}, nil
	}
	var opts []domain.Option
	if err := json.Unmarshal([]byte(raw.String), &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

const propertyCols = `name, label, type, field_type, group_name, description,
	display_order, has_unique_value, hidden, form_field, calculated,
	external_options, hubspot_defined, options, created_at, updated_at`

// listProperties returns the object type's properties in insertion order,
// which is the order a live portal echoes back.
func (s *store) listProperties(ctx context.Context, objectType string) ([]domain.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyCols+` FROM property_definitions
		 WHERE object_type = ? ORDER BY rowid`, objectType)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var props []domain.Property
	for rows.Next() {
		var p domain.Property
		var optionsRaw sql.NullString
		err := rows.Scan(
			&p.Name, &p.Label, &p.Type, &p.FieldType,
			&p.GroupName, &p.Description, &p.DisplayOrder,
			&p.HasUniqueValue, &p.Hidden, &p.FormField,
			&p.Calculated, &p.ExternalOptions, &p.HubspotDefined,
			&optionsRaw, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		opts, err := decodeOptions(optionsRaw)
		if err != nil {
			return nil, err
		}
		p.Options = opts
		props = append(props, p)
	}
	return props, rows.Err()
}

// createProperty inserts a property definition.
func (s *store) createProperty(ctx context.Context, objectType string, p *domain.Property) (*domain.Property, error) {
	ts := now()
	p.CreatedAt = ts
	p.UpdatedAt = ts

	optStr, err := encodeOptions(p.Options)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO property_definitions (
			object_type, name, label, type, field_type, group_name, description,
			display_order, has_unique_value, hidden, form_field, calculated,
			external_options, hubspot_defined, options, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		objectType, p.Name, p.Label, p.Type, p.FieldType, p.GroupName, p.Description,
		p.DisplayOrder, p.HasUniqueValue, p.Hidden, p.FormField, p.Calculated,
		p.ExternalOptions, p.HubspotDefined, optStr, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create property: %w", err)
	}
	return p, nil
}

// listGroups returns the object type's property groups in insertion order.
func (s *store) listGroups(ctx context.Context, objectType string) ([]domain.PropertyGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, label, display_order FROM property_groups
		 WHERE object_type = ? ORDER BY rowid`, objectType)
	if err != nil {
		return nil, fmt.Errorf("list property groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []domain.PropertyGroup
	for rows.Next() {
		var g domain.PropertyGroup
		if err := rows.Scan(&g.Name, &g.Label, &g.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan property group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// createGroup inserts a property group.
func (s *store) createGroup(ctx context.Context, objectType string, g *domain.PropertyGroup) (*domain.PropertyGroup, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO property_groups (object_type, name, label, display_order)
		 VALUES (?, ?, ?, ?)`,
		objectType, g.Name, g.Label, g.DisplayOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("create property group: %w", err)
	}
	return g, nil
}

func isDuplicate(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "already exists")
}
