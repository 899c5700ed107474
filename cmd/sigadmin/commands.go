package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/mailsig/internal/signature/app"
	"github.com/aussiebroadwan/mailsig/internal/signature/security"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/internal/signature/store/drivers/sqlite"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
)

// open points the pepper at the configured file and opens the database.
func (env *environment) open() (*sqlite.Store, error) {
	cryptox.SetPepperPath(env.cfg.PepperFile)
	return app.OpenStore(env.cfg)
}

func runCreateAdmin(ctx context.Context, env *environment, args []string) error {
	var username, password, role string

	fs := newFlagSet("create-admin", env)
	fs.StringVarP(&username, "username", "u", "", "account name (required)")
	fs.StringVarP(&password, "password", "p", "-", `password, or "-" to read it from stdin`)
	fs.StringVar(&role, "role", "admin", "admin or editor")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if username == "" {
		return errors.New("--username is required")
	}
	password, err := readPassword(password, env.stdin)
	if err != nil {
		return err
	}

	st, err := env.open()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := service.NewSessionStore(st, 0, nil)
	u, err := service.NewAdminService(st, sessions).CreateAdminUser(ctx, service.Operator, service.NewAdminUser{
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "created %s (%s) with id %s\n", u.Username, u.Role, u.ID)
	return nil
}

func runSetPassword(ctx context.Context, env *environment, args []string) error {
	var username, password string

	fs := newFlagSet("set-password", env)
	fs.StringVarP(&username, "username", "u", "", "account name (required)")
	fs.StringVarP(&password, "password", "p", "-", `new password, or "-" to read it from stdin`)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if username == "" {
		return errors.New("--username is required")
	}
	password, err := readPassword(password, env.stdin)
	if err != nil {
		return err
	}

	st, err := env.open()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := service.NewSessionStore(st, 0, nil)
	if err := service.NewAdminService(st, sessions).SetPasswordByUsername(ctx, service.Operator, username, password); err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "password updated for %s, existing sessions revoked\n", username)
	return nil
}

// templateFile is the import-templates document.
//
//	templates:
//	  - name: Standard
//	    default: true
//	    html: "<p>{{FullName}}</p>"
//	  - name: Sales
//	    file: sales.html
type templateFile struct {
	Templates []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
	HTML    string `yaml:"html"`

	// File is read relative to the YAML document when HTML is empty.
	File string `yaml:"file"`
}

func loadTemplateFile(path string) ([]templateEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc templateFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	defaults := 0
	for i, t := range doc.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i+1)
		}
		if t.Default {
			defaults++
		}
		if t.HTML != "" {
			continue
		}
		if t.File == "" {
			return nil, fmt.Errorf("template %q: html or file is required", t.Name)
		}
		body, err := os.ReadFile(filepath.Join(filepath.Dir(path), t.File))
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		doc.Templates[i].HTML = string(body)
	}
	if defaults > 1 {
		return nil, errors.New("at most one template may be marked default")
	}
	return doc.Templates, nil
}

func runImportTemplates(ctx context.Context, env *environment, args []string) error {
	var file string

	fs := newFlagSet("import-templates", env)
	fs.StringVarP(&file, "file", "f", "", "YAML file listing the templates (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if file == "" {
		return errors.New("--file is required")
	}

	entries, err := loadTemplateFile(file)
	if err != nil {
		return err
	}

	st, err := env.open()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := service.NewAssignmentService(st, security.NewSanitizer())
	for _, t := range entries {
		id, err := svc.SaveTemplate(ctx, t.Name, t.HTML, t.Default)
		if err != nil {
			return fmt.Errorf("template %q: %w", t.Name, err)
		}
		marker := ""
		if t.Default {
			marker = " (default)"
		}
		fmt.Fprintf(env.stdout, "saved %s as template %d%s\n", t.Name, id, marker)
	}
	return nil
}

func runSync(ctx context.Context, env *environment, args []string) error {
	var email string

	fs := newFlagSet("sync", env)
	fs.StringVar(&email, "email", "", "refresh a single profile instead of the whole directory")
	fs.IntVar(&env.cfg.SyncLimit, "limit", env.cfg.SyncLimit, "most directory users to read")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	provider, err := app.NewDirectoryProvider(env.cfg, env.logger)
	if err != nil {
		return err
	}
	if provider == nil {
		return errors.New("directory credentials are not configured (TENANT_ID, CLIENT_ID, CLIENT_SECRET)")
	}

	st, err := env.open()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := service.NewDirectoryService(st, provider, env.cfg.SyncLimit, nil)
	if email != "" {
		p, err := svc.ReconcileOne(ctx, email)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "synced %s (%s)\n", p.Email, p.FullName)
		return nil
	}

	res, err := svc.SyncAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "inserted %d, updated %d, unchanged %d, skipped %d\n",
		res.Inserted, res.Updated, res.Unchanged, res.Skipped)
	return nil
}

func runSweep(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("sweep", env)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	st, err := env.open()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := service.NewSessionStore(st, 0, nil).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "removed %d expired sessions\n", n)
	return nil
}
