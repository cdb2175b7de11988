package config

import "testing"

func TestFillStructAppliesDefaults(t *testing.T) {
	s := &Struct{}
	fillStruct(s, "")

	if s.Ingest.BindAddr != "0.0.0.0:27500" {
		t.Fatalf("want default bind addr, got %q", s.Ingest.BindAddr)
	}
	if s.Db.Port != 5432 {
		t.Fatalf("want default db port 5432, got %d", s.Db.Port)
	}
	if s.Log.Pretty != true {
		t.Fatalf("want default log.pretty true, got %v", s.Log.Pretty)
	}
}

func TestFillStructReadsEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6000")
	t.Setenv("RCON_POOL_MAX_RETRIES", "7")
	t.Setenv("LOG_PRETTY", "false")

	s := &Struct{}
	fillStruct(s, "")

	if s.Db.Host != "db.internal" {
		t.Fatalf("want DB_HOST override, got %q", s.Db.Host)
	}
	if s.Db.Port != 6000 {
		t.Fatalf("want DB_PORT override, got %d", s.Db.Port)
	}
	if s.RconPool.MaxRetries != 7 {
		t.Fatalf("want RCON_POOL_MAX_RETRIES override, got %d", s.RconPool.MaxRetries)
	}
	if s.Log.Pretty != false {
		t.Fatalf("want LOG_PRETTY override, got %v", s.Log.Pretty)
	}
}

func TestEnvKeyNesting(t *testing.T) {
	if got := envKey("", "Db"); got != "DB" {
		t.Fatalf("want DB, got %q", got)
	}
	if got := envKey("DB", "Host"); got != "DB_HOST" {
		t.Fatalf("want DB_HOST, got %q", got)
	}
	if got := envKey("RCON_POOL", "StatusIntervalSeconds"); got != "RCON_POOL_STATUS_INTERVAL_SECONDS" {
		t.Fatalf("want RCON_POOL_STATUS_INTERVAL_SECONDS, got %q", got)
	}
}
