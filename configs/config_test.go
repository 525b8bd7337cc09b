package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type chanConfig struct {
	values []Settings
}

func (c *chanConfig) Reload(update chan<- Settings) {
	for _, v := range c.values {
		update <- v
	}
}

type recordModule struct {
	name string
	got  chan Settings
}

func (m *recordModule) Name() string { return m.name }

func (m *recordModule) Watch(ch <-chan Settings) {
	for s := range ch {
		m.got <- s
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := "port: 2222\nconnect_timeout: 3s\ndefault_pty: xterm\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Port != 2222 || s.ConnectTimeout != 3*time.Second || s.DefaultPty != "xterm" {
		t.Errorf("overrides not applied: %+v", s)
	}
	if s.Workers != 32 || s.ShellSettle != 150*time.Millisecond {
		t.Errorf("defaults lost: %+v", s)
	}
	if s.Log.Level != "debug" || s.Log.MaxBackups != 3 {
		t.Errorf("log section merged wrong: %+v", s.Log)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("port: 70000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for port 70000")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestManagerNotifiesModules(t *testing.T) {
	first := DefaultSettings()
	second := DefaultSettings()
	second.Port = 2200

	src := &chanConfig{}
	initial := DefaultSettings()
	m := NewManager[Settings](src, &initial)
	mod := &recordModule{name: "rec", got: make(chan Settings, 2)}
	m.AddModule(mod)
	if m.Current().Port != 22 {
		t.Fatalf("initial value not current")
	}

	// feed after registration so no update is missed
	go func() {
		m.update <- first
		m.update <- second
	}()
	for i := 0; i < 2; i++ {
		select {
		case <-mod.got:
		case <-time.After(time.Second):
			t.Fatalf("update %d not delivered", i)
		}
	}
	if m.Current().Port != 2200 {
		t.Errorf("expected current port 2200, got %d", m.Current().Port)
	}
	m.RemoveModule("rec")
}

func TestFileManagerReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("port: 2201\n"), 0600); err != nil {
		t.Fatal(err)
	}
	m, stop, err := NewFileManager[Settings](SettingsFile(path))
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	if m.Current().Port != 2201 {
		t.Fatalf("expected initial port 2201, got %d", m.Current().Port)
	}

	mod := &recordModule{name: "rec", got: make(chan Settings, 4)}
	m.AddModule(mod)
	if err := os.WriteFile(path, []byte("port: 2202\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-mod.got:
			if s.Port == 2202 {
				return
			}
		case <-deadline:
			t.Fatal("reload not observed")
		}
	}
}
