package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type startTimeKey struct{ plugin string }

type registrar func(name string, fn func(*gorm.DB)) error

// registerTimedCallbacks calls after once every GORM create, query, update,
// delete, row and raw statement has executed, with the statement's
// operation and elapsed time
func registerTimedCallbacks(db *gorm.DB, plugin string, after func(db *gorm.DB, operation string, elapsed time.Duration)) error {
	key := startTimeKey{plugin: plugin}
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
	afterFor := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			var elapsed time.Duration
			if db.Statement.Context != nil {
				if start, ok := db.Statement.Context.Value(key).(time.Time); ok {
					elapsed = time.Since(start)
				}
			}
			op := operation
			if op == "" {
				op = operationOf(db.Statement.SQL.String())
			}
			after(db, op, elapsed)
		}
	}

	cb := db.Callback()
	hooks := []struct {
		name, operation string
		before, after   registrar
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before(plugin+":before_"+h.name, before); err != nil {
			return err
		}
		if err := h.after(plugin+":after_"+h.name, afterFor(h.operation)); err != nil {
			return err
		}
	}
	return nil
}

// operationOf classifies raw SQL by its leading keyword
func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	}
	return "OTHER"
}
