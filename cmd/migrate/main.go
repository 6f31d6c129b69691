package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/ManuelReschke/CoinFox/internal/pkg/env"
)

func main() {
	// Lade Umgebungsvariablen aus .env-Datei
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ungültige Konfiguration: %v", err)
	}

	dbURL, err := databaseURL(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Verbinde mit Datenbank (%s): %s@%s:%d/%s",
		cfg.Database.Driver, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// Migrationen liegen je Treiber in eigenem Verzeichnis
	m, err := migrate.New("file://migrations/"+cfg.Database.Driver, dbURL)
	if err != nil {
		log.Fatalf("Fehler beim Initialisieren der Migration: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Fehler beim Schließen der Migrationsressourcen: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Println("Keine Änderungen: Datenbank ist bereits auf dem neuesten Stand")
		case err != nil:
			log.Fatalf("Fehler beim Ausführen der Migrationen: %v", err)
		default:
			log.Println("Migrationen erfolgreich ausgeführt")
		}

	case "down":
		// Nur die letzte Migration zurückrollen
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Fehler beim Zurückrollen der letzten Migration: %v", err)
		}
		log.Println("Letzte Migration erfolgreich zurückgerollt")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("Bitte geben Sie eine Versionsnummer an")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Ungültige Versionsnummer: %v", err)
		}

		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Printf("Keine Änderungen: Datenbank ist bereits auf Version %d", version)
		case err != nil:
			log.Fatalf("Fehler beim Migrieren zur Version %d: %v", version, err)
		default:
			log.Printf("Migration zur Version %d erfolgreich", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Println("Keine Migrationen wurden bisher ausgeführt")
		case err != nil:
			log.Fatalf("Fehler beim Abrufen der Migrationsversion: %v", err)
		default:
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Aktuelle Migrationsversion: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

// databaseURL builds the golang-migrate URL. SQLite has no migration files;
// use DB_AUTO_MIGRATE there.
func databaseURL(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?multiStatements=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("migrations are not supported for driver %q, use DB_AUTO_MIGRATE", cfg.Driver)
	}
}

func printUsage() {
	fmt.Println("Verwendung: go run cmd/migrate/main.go [command]")
	fmt.Println("Verfügbare Befehle:")
	fmt.Println("  up     - Führe alle ausstehenden Migrationen aus")
	fmt.Println("  down   - Rolle die letzte Migration zurück")
	fmt.Println("  goto N - Migriere zur Version N")
	fmt.Println("  status - Zeige aktuelle Migrationsversion an")
}
