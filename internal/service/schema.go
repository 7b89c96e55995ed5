package service

import (
	"fmt"

	"gorm.io/gorm"
)

// MappableTables are the tables a database field mapping may read from.
var MappableTables = []string{"projects", "customers", "requirements", "implementation_tasks", "input_data"}

func IsMappableTable(name string) bool {
	for _, t := range MappableTables {
		if t == name {
			return true
		}
	}
	return false
}

type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary_key"`
}

type SchemaService struct {
	db *gorm.DB
}

func NewSchemaService(db *gorm.DB) *SchemaService {
	return &SchemaService{db: db}
}

// Tables returns the allow-listed tables that actually exist.
func (s *SchemaService) Tables() []string {
	out := make([]string, 0, len(MappableTables))
	for _, t := range MappableTables {
		if s.db.Migrator().HasTable(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *SchemaService) Columns(table string) ([]ColumnInfo, error) {
	if !IsMappableTable(table) {
		return nil, fmt.Errorf("40401:table %s is not available", table)
	}
	types, err := s.db.Migrator().ColumnTypes(table)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(types))
	for _, ct := range types {
		info := ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()}
		if n, ok := ct.Nullable(); ok {
			info.Nullable = n
		}
		if pk, ok := ct.PrimaryKey(); ok {
			info.Primary = pk
		}
		cols = append(cols, info)
	}
	return cols, nil
}

// HasColumn reports whether table is allow-listed and carries column.
func (s *SchemaService) HasColumn(table, column string) bool {
	return IsMappableTable(table) && s.db.Migrator().HasColumn(table, column)
}
