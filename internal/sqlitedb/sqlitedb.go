// Package sqlitedb stores task records in an SQLite database, with the schema managed by migrations.
package sqlitedb

import (
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/session"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type taskRow struct {
	ID              string `gorm:"primaryKey"`
	Name            string
	Source          string
	SavedPath       string
	Resumable       bool
	AllowBackground bool
	Progress        float64
	State           string
	Checkpoint      []byte
	Error           string
	Order           int `gorm:"column:sort_order"`
	AddedAt         time.Time
}

func (taskRow) TableName() string {
	return "task"
}

func rowFromRecord(rec *download.Record) taskRow {
	return taskRow{
		ID:              string(rec.ID),
		Name:            rec.Name,
		Source:          rec.Source,
		SavedPath:       rec.SavedPath,
		Resumable:       rec.Resumable,
		AllowBackground: rec.AllowBackground,
		Progress:        rec.Progress,
		State:           string(rec.State),
		Checkpoint:      rec.Checkpoint,
		Error:           rec.Error,
		Order:           rec.Order,
		AddedAt:         rec.AddedAt,
	}
}

func (r taskRow) record() download.Record {
	return download.Record{
		ID:              download.ID(r.ID),
		Name:            r.Name,
		Source:          r.Source,
		SavedPath:       r.SavedPath,
		Resumable:       r.Resumable,
		AllowBackground: r.AllowBackground,
		Progress:        r.Progress,
		State:           download.State(r.State),
		Checkpoint:      r.Checkpoint,
		Error:           r.Error,
		Order:           r.Order,
		AddedAt:         r.AddedAt,
	}
}

type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var _ session.Database = &Database{}

// New opens (creating if necessary) the database at path and brings its schema up to date.
func New(path string) (*Database, error) {
	logger := zapgorm2.New(zap.L().Named("sqlitedb"))
	logger.IgnoreRecordNotFoundError = true
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	d := &Database{db: db, log: zap.S().Named("sqlitedb")}
	if err := d.Migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) Migrate() error {
	d.log.Debug("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close() would close the shared *sql.DB as well
	switch err = m.Up(); err {
	case nil:
		d.log.Info("database migration complete")
	case migrate.ErrNoChange:
		d.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) ListTasks() ([]download.Record, error) {
	var rows []taskRow
	if err := d.db.Order("sort_order, added_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]download.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (d *Database) WriteTask(rec *download.Record) error {
	row := rowFromRecord(rec)
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (d *Database) DeleteTask(rec *download.Record) error {
	return d.db.Delete(&taskRow{}, "id = ?", string(rec.ID)).Error
}
