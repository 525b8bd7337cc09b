package protocol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lvzhenqian/sshsftp/errors"
	"golang.org/x/crypto/ssh"
)

func TestGenerateKeyPair(t *testing.T) {
	cases := []struct {
		spec KeySpec
		want KeyDetails
	}{
		{KeySpec{Type: KeyEd25519, Comment: "ci@host"}, KeyDetails{KeyEd25519, 256}},
		{KeySpec{Type: KeyECDSA, Bits: 384}, KeyDetails{KeyECDSA, 384}},
		{KeySpec{Type: KeyRSA, Bits: 2048, Passphrase: "pw"}, KeyDetails{KeyRSA, 2048}},
	}
	for _, c := range cases {
		t.Run(string(c.spec.Type), func(t *testing.T) {
			m, err := GenerateKeyPair(c.spec)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(m.PrivateKey, "OPENSSH PRIVATE KEY") {
				t.Errorf("expected OpenSSH PEM, got %q", m.PrivateKey[:40])
			}
			if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(m.PublicKey)); err != nil {
				t.Errorf("public key does not parse: %v", err)
			}
			if c.spec.Comment != "" && !strings.HasSuffix(m.PublicKey, c.spec.Comment) {
				t.Errorf("comment missing from %q", m.PublicKey)
			}

			got, err := GetKeyDetails(m.PrivateKey, c.spec.Passphrase)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("expected %+v, got %+v", c.want, got)
			}
		})
	}
}

func TestGenerateKeyPairRejects(t *testing.T) {
	if _, err := GenerateKeyPair(KeySpec{Type: "dsa"}); err == nil {
		t.Error("dsa must be rejected")
	}
	if _, err := GenerateKeyPair(KeySpec{Type: KeyECDSA, Bits: 123}); err == nil {
		t.Error("odd ecdsa size must be rejected")
	}
}

func TestKeyPairSigner(t *testing.T) {
	m, err := GenerateKeyPair(KeySpec{Type: KeyEd25519})
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateKeyPair(KeySpec{Type: KeyEd25519})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, []byte(m.PrivateKey), 0600); err != nil {
		t.Fatal(err)
	}

	fromFile, err := KeyPair{PrivateKey: path}.Signer()
	if err != nil {
		t.Fatalf("key file not read: %v", err)
	}
	fromPEM, err := KeyPair{PrivateKey: m.PrivateKey, PublicKey: m.PublicKey}.Signer()
	if err != nil {
		t.Fatalf("matching public key rejected: %v", err)
	}
	if string(fromFile.PublicKey().Marshal()) != string(fromPEM.PublicKey().Marshal()) {
		t.Errorf("file and PEM material disagree")
	}
	if _, err := (KeyPair{PrivateKey: m.PrivateKey, PublicKey: other.PublicKey}).Signer(); err == nil {
		t.Errorf("mismatched public key must be rejected")
	}
}

func TestAuthMethods(t *testing.T) {
	methods, err := authMethods(Password("secret"))
	if err != nil || len(methods) != 2 {
		t.Fatalf("password: expected 2 methods, got %d %v", len(methods), err)
	}
	if _, err := authMethods(nil); err == nil {
		t.Errorf("nil credential must fail")
	}
	_, err = authMethods(KeyPair{PrivateKey: "not a key"})
	if err == nil {
		t.Fatal("garbage key must fail")
	}
	if stack := errors.ErrorStack(err); !strings.Contains(stack, "credential.go") {
		t.Errorf("key parse failure lost its location:\n%s", stack)
	}
}
