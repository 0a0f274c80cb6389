package admin

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gorm.io/gorm"

	"linkfolio/models"
)

var (
	UserCSVHeader    = []string{"id", "email", "firstName", "lastName", "isAdmin", "emailVerified", "profileCount", "createdAt"}
	ProfileCSVHeader = []string{"id", "pageName", "displayName", "bio", "ownerEmail", "isDefault", "profileViews", "clicks", "createdAt"}
)

// ExportUsersCSV writes every user, oldest first. Filters used by the
// listings do not apply.
func (s *Service) ExportUsersCSV(ctx context.Context, w io.Writer) error {
	query := s.db.WithContext(ctx).Table("users").Select(userColumns).Order("users.created_at ASC").Order("users.id")
	return writeCSV(s.db, query, w, UserCSVHeader, func(row *UserRow) []string {
		return []string{
			row.ID,
			row.Email,
			models.StringValue(row.FirstName),
			models.StringValue(row.LastName),
			strconv.FormatBool(row.IsAdmin),
			strconv.FormatBool(row.EmailVerified),
			strconv.FormatInt(row.ProfileCount, 10),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
	})
}

// ExportProfilesCSV writes every bio page with its owner's email, oldest first.
func (s *Service) ExportProfilesCSV(ctx context.Context, w io.Writer) error {
	query := s.db.WithContext(ctx).Table("profiles").
		Joins("LEFT JOIN users ON users.id = profiles.user_id").
		Select(profileColumns).
		Order("profiles.created_at ASC").Order("profiles.id")
	return writeCSV(s.db, query, w, ProfileCSVHeader, func(row *ProfileRow) []string {
		return []string{
			row.ID,
			row.PageName,
			row.DisplayName,
			row.Bio,
			row.OwnerEmail,
			strconv.FormatBool(row.IsDefault),
			strconv.FormatInt(row.ProfileViews, 10),
			strconv.FormatInt(row.Clicks, 10),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
	})
}

// writeCSV streams the rows of query through format without loading the
// whole table.
func writeCSV[T any](database *gorm.DB, query *gorm.DB, w io.Writer, header []string, format func(*T) []string) error {
	rows, err := query.Rows()
	if err != nil {
		return fmt.Errorf("export query: %w", err)
	}
	defer rows.Close()

	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return err
	}
	for rows.Next() {
		var row T
		if err := database.ScanRows(rows, &row); err != nil {
			return fmt.Errorf("export scan: %w", err)
		}
		if err := out.Write(format(&row)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("export rows: %w", err)
	}
	out.Flush()
	return out.Error()
}
