package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rxledger/statements/internal/types"
)

// directoryFile is the JSON layout read by SeedDirectory
type directoryFile struct {
	Organizations []struct {
		ExternalID string `json:"external_id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Wards      []struct {
			ExternalID string `json:"external_id"`
			Name       string `json:"name"`
		} `json:"wards"`
	} `json:"organizations"`
	Patients []struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	} `json:"patients"`
}

// SeedDirectory loads organizations, their wards and patients for local
// development. Organizations are matched on external id and updated in place.
func SeedDirectory() error {
	path := os.Getenv("DIRECTORY_FILE")
	if path == "" {
		return fmt.Errorf("DIRECTORY_FILE is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var dir directoryFile
	if err := json.Unmarshal(data, &dir); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	env, err := newScriptEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := types.SetUserID(context.Background(), "seed-directory")
	now := time.Now().UTC()
	user := types.GetUserID(ctx)

	return env.db.WithTx(ctx, func(ctx context.Context) error {
		q := env.db.GetQuerier(ctx)

		for _, org := range dir.Organizations {
			var orgID int64
			err := q.GetContext(ctx, &orgID, `
				INSERT INTO organizations (external_id, name, email, status, created_at, updated_at, created_by, updated_by)
				VALUES ($1, $2, $3, $4, $5, $5, $6, $6)
				ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
				RETURNING id`,
				org.ExternalID, org.Name, org.Email, types.StatusActive, now, user)
			if err != nil {
				return fmt.Errorf("organization %s: %w", org.ExternalID, err)
			}

			for _, ward := range org.Wards {
				_, err := q.ExecContext(ctx, `
					INSERT INTO wards (organization_id, external_id, name, status, created_at, updated_at, created_by, updated_by)
					SELECT $1, $2, $3, $4, $5, $5, $6, $6
					WHERE NOT EXISTS (SELECT 1 FROM wards WHERE organization_id = $1 AND external_id = $2)`,
					orgID, ward.ExternalID, ward.Name, types.StatusActive, now, user)
				if err != nil {
					return fmt.Errorf("ward %s/%s: %w", org.ExternalID, ward.ExternalID, err)
				}
			}
			env.log.Infow("seeded organization", "external_id", org.ExternalID, "id", orgID, "wards", len(org.Wards))
		}

		for _, p := range dir.Patients {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO patients (first_name, last_name, email, status, created_at, updated_at, created_by, updated_by)
				VALUES ($1, $2, $3, $4, $5, $5, $6, $6)`,
				p.FirstName, p.LastName, p.Email, types.StatusActive, now, user); err != nil {
				return fmt.Errorf("patient %s %s: %w", p.FirstName, p.LastName, err)
			}
		}
		env.log.Infow("seeded patients", "count", len(dir.Patients))
		return nil
	})
}
