package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	Vendors []SeedVendor `yaml:"vendors"`
}

type SeedVendor struct {
	Email    string        `yaml:"email"`
	Name     string        `yaml:"name"`
	Phone    string        `yaml:"phone"`
	Password string        `yaml:"password"`
	Services []SeedService `yaml:"services"`
}

type SeedService struct {
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	Description     string `yaml:"description"`
	Price           int64  `yaml:"price"` // rappen
	DurationMinutes int    `yaml:"duration_minutes"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/commerzio.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cfg CatalogConfig
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.Vendors) == 0 {
		return fmt.Errorf("no vendors in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for _, v := range cfg.Vendors {
		if v.Email == "" {
			continue
		}
		vendor, err := seedVendor(ctx, db, v)
		if err != nil {
			return fmt.Errorf("vendor %s: %w", v.Email, err)
		}

		existing, err := db.ListServicesByVendor(ctx, vendor.ID)
		if err != nil {
			return fmt.Errorf("list services for %s: %w", v.Email, err)
		}
		byName := make(map[string]*models.Service, len(existing))
		for _, svc := range existing {
			byName[svc.Name] = svc
		}

		for _, s := range v.Services {
			if s.Name == "" {
				continue
			}
			if svc, ok := byName[s.Name]; ok {
				svc.Category = s.Category
				svc.Description = s.Description
				svc.Price = s.Price
				svc.DurationMinutes = s.DurationMinutes
				svc.Active = true
				if err = db.UpdateService(ctx, svc); err != nil {
					return fmt.Errorf("update %s: %w", s.Name, err)
				}
				updated++
				continue
			}
			svc := &models.Service{
				ID:              uuid.NewString(),
				VendorID:        vendor.ID,
				Name:            s.Name,
				Category:        s.Category,
				Description:     s.Description,
				Price:           s.Price,
				DurationMinutes: s.DurationMinutes,
				Active:          true,
			}
			if err = db.CreateService(ctx, svc); err != nil {
				return fmt.Errorf("create %s: %w", s.Name, err)
			}
			created++
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}

// seedVendor reuses an existing account so reruns stay idempotent.
func seedVendor(ctx context.Context, db *database.DB, v SeedVendor) (*models.User, error) {
	vendor, err := db.GetUserByEmail(ctx, v.Email)
	if err == nil {
		return vendor, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	password := v.Password
	if password == "" {
		password = uuid.NewString()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	vendor = &models.User{
		ID:           uuid.NewString(),
		Email:        v.Email,
		PasswordHash: string(hash),
		Name:         v.Name,
		Phone:        v.Phone,
		Role:         models.RoleVendor,
	}
	if err = db.CreateUser(ctx, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}
