package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/repo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and seed the default plans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()
		if err := migrate(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

// inspectCmd groups read-mostly database maintenance commands.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect the database (tables, profiles)",
}

var inspectTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Print the row count of every table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tROWS")
		for _, tc := range repo.TableCounts(cmd.Context(), db) {
			if tc.Err != nil {
				fmt.Fprintf(tw, "%s\terror: %v\n", tc.Table, tc.Err)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\n", tc.Table, tc.Rows)
		}
		return tw.Flush()
	},
}

var profilesLimit int

var inspectProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List profiles, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		profiles, err := repo.ListProfiles(cmd.Context(), db, profilesLimit)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		if len(profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no profiles")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tPHONE\tUPDATED")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Email, p.FullName, p.Phone, p.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var createProfile struct {
	userID string
	email  string
	name   string
	phone  string
}

var inspectCreateProfileCmd = &cobra.Command{
	Use:   "create-profile",
	Short: "Create or replace the profile of an existing user",
	Long: `Creates the profile row for a user that has credentials but no profile,
or overwrites name and phone of an existing one.

Example:
  tributaria inspect create-profile --email ana@example.com --name "Ana Souza"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if createProfile.userID == "" && createProfile.email == "" {
			return errors.New("pass --user-id or --email")
		}
		name := auth.SanitizeName(createProfile.name)
		if name == "" {
			return auth.ErrInvalidName
		}
		if err := auth.ValidateFullName(name); err != nil {
			return err
		}
		if err := auth.ValidatePhone(createProfile.phone); err != nil {
			return err
		}

		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := cmd.Context()
		var uid, email string
		if createProfile.userID != "" {
			u, err := repo.GetUser(ctx, db, createProfile.userID)
			if err != nil {
				return userLookupErr(err)
			}
			uid, email = u.ID, u.Email
		} else {
			u, err := repo.GetUserByEmail(ctx, db, auth.NormalizeEmail(createProfile.email))
			if err != nil {
				return userLookupErr(err)
			}
			uid, email = u.ID, u.Email
		}

		p, err := repo.UpsertProfile(ctx, db, uid, name, createProfile.phone, email)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %s saved (%s, %s)\n", p.ID, p.Email, p.FullName)
		return nil
	},
}

func userLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("user not found")
	}
	return fmt.Errorf("look up user: %w", err)
}

func init() {
	inspectProfilesCmd.Flags().IntVar(&profilesLimit, "limit", 50, "maximum rows (0 for all)")

	f := inspectCreateProfileCmd.Flags()
	f.StringVar(&createProfile.userID, "user-id", "", "user ID")
	f.StringVar(&createProfile.email, "email", "", "user email (alternative to --user-id)")
	f.StringVar(&createProfile.name, "name", "", "full name (required)")
	f.StringVar(&createProfile.phone, "phone", "", "phone, e.g. (11) 98765-4321")
	_ = inspectCreateProfileCmd.MarkFlagRequired("name")

	inspectCmd.AddCommand(inspectTablesCmd)
	inspectCmd.AddCommand(inspectProfilesCmd)
	inspectCmd.AddCommand(inspectCreateProfileCmd)
}
