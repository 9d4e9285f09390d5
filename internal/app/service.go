package app

import (
	"context"
	"errors"

	"github.com/joacominatel/minaops/internal/database"
	"github.com/sirupsen/logrus"
)

// Service coordinates query-module invocations between the CLI and the
// database driver.
type Service struct {
	driver database.Driver
	log    logrus.FieldLogger
	dsn    string
}

// NewService creates a new query service.
func NewService(driver database.Driver, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{driver: driver, log: log}
}

// Connect establishes a database connection.
func (s *Service) Connect(ctx context.Context, dsn string) error {
	if err := s.driver.Connect(ctx, dsn); err != nil {
		if errors.Is(err, database.ErrUnavailable) {
			return &ErrConnection{Backend: "postgres", Cause: err}
		}
		return &ErrConfig{Cause: err}
	}
	s.dsn = dsn
	return nil
}

// Disconnect closes the database connection.
func (s *Service) Disconnect() error {
	return s.driver.Close()
}

// DatabaseName returns the current database name.
func (s *Service) DatabaseName() string {
	return s.driver.DatabaseName()
}

// RunQuery validates p, connects and executes it. Parameters are checked
// and the script is read before any connection is attempted.
func (s *Service) RunQuery(ctx context.Context, dsn string, p database.Params) (*database.QueryResult, error) {
	req, err := database.NewRequest(p)
	if err != nil {
		return nil, &ErrConfig{Cause: err}
	}
	batch, err := req.Prepare()
	if err != nil {
		return nil, &ErrConfig{Cause: err}
	}

	log := s.log.WithFields(logrus.Fields{
		"statements": len(batch.Statements),
		"check":      batch.Check,
		"autocommit": batch.Autocommit,
	})
	if batch.SessionRole != "" {
		log = log.WithField("session_role", batch.SessionRole)
	}

	if err := s.Connect(ctx, dsn); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Disconnect(); err != nil {
			log.WithError(err).Warn("disconnect failed")
		}
	}()

	log.Debug("executing query")
	result, err := s.driver.Execute(ctx, batch)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrInvalidParams):
			return nil, &ErrConfig{Cause: err}
		case errors.Is(err, database.ErrUnavailable):
			return nil, &ErrConnection{Backend: "postgres", Cause: err}
		}
		return nil, &ErrQuery{Query: batch.Text(), Cause: err}
	}
	log.WithFields(logrus.Fields{
		"statusmessage": result.StatusMessage,
		"rowcount":      result.RowCount,
		"changed":       result.Changed,
		"duration":      result.Duration,
	}).Info("query finished")
	return result, nil
}
