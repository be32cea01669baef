package engine

import (
	"context"
	"fmt"

	"duck-pipeline/internal/ddl"
)

// S3Settings holds object-storage credentials for s3:// source paths.
type S3Settings struct {
	KeyID    string
	Secret   string
	Endpoint string
	Region   string
	URLStyle string
}

// s3SecretName is the DuckDB secret created by ConfigureS3.
const s3SecretName = "pipeline_s3"

// InstallExtensions installs and loads the DuckDB extensions needed to read
// remote source files.
func (c *Catalog) InstallExtensions(ctx context.Context) error {
	for _, ext := range []string{"INSTALL httpfs", "LOAD httpfs"} {
		if _, err := c.db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("extension setup (%s): %w", ext, err)
		}
	}
	return nil
}

// ConfigureS3 loads httpfs and registers an S3 secret so sources may point at
// s3:// paths.
func (c *Catalog) ConfigureS3(ctx context.Context, s S3Settings) error {
	if err := c.InstallExtensions(ctx); err != nil {
		return err
	}
	stmt, err := ddl.CreateS3Secret(s3SecretName, s.KeyID, s.Secret, s.Endpoint, s.Region, s.URLStyle)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create S3 secret %q: %w", s3SecretName, err)
	}
	c.logger.Info("s3 secret configured", "endpoint", s.Endpoint, "region", s.Region)
	return nil
}
