package protocol

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lvzhenqian/sshsftp/errors"
	"golang.org/x/crypto/ssh"
)

// Credential is either a Password or a KeyPair.
type Credential interface {
	credential()
}

type Password string

// KeyPair authenticates with a private key. PrivateKey is PEM material or a
// path to a key file. PublicKey is optional; when it holds a certificate the
// certificate is presented, otherwise it must match the private key.
type KeyPair struct {
	PrivateKey string
	PublicKey  string
	Passphrase string
}

func (Password) credential() {}
func (KeyPair) credential()  {}

func authMethods(credential Credential) ([]ssh.AuthMethod, error) {
	switch c := credential.(type) {
	case Password:
		pw := string(c)
		return []ssh.AuthMethod{
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pw
				}
				return answers, nil
			}),
		}, nil
	case KeyPair:
		signer, err := c.Signer()
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case nil:
		return nil, errors.New("no credential given")
	default:
		return nil, errors.Errorf("unsupported credential %T", credential)
	}
}

func (k KeyPair) Signer() (ssh.Signer, error) {
	if k.PrivateKey == "" {
		k.PrivateKey = "~/.ssh/id_rsa"
	}
	content, err := keyMaterial(k.PrivateKey)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if k.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(content, []byte(k.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(content)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse private key")
	}
	if k.PublicKey == "" {
		return signer, nil
	}

	pubContent, err := keyMaterial(k.PublicKey)
	if err != nil {
		return nil, err
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(pubContent)
	if err != nil {
		return nil, errors.Wrapf(err, "parse public key")
	}
	if cert, ok := pub.(*ssh.Certificate); ok {
		certSigner, err := ssh.NewCertSigner(cert, signer)
		return certSigner, errors.Wrapf(err, "certificate signer")
	}
	if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
		return nil, errors.New("public key does not match private key")
	}
	return signer, nil
}

// keyMaterial reads ph when it names an existing file and returns it
// unchanged otherwise.
func keyMaterial(ph string) ([]byte, error) {
	if strings.Contains(ph, "\n") || strings.HasPrefix(ph, "-----") || strings.HasPrefix(ph, "ssh-") {
		return []byte(ph), nil
	}
	p := localRealPath(ph)
	if _, err := os.Stat(p); err != nil {
		return []byte(ph), nil
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "open key %s", p)
	}
	return content, nil
}

func localRealPath(ph string) string {
	if ph != "~" && !strings.HasPrefix(ph, "~/") {
		return ph
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ph
	}
	return filepath.Join(home, strings.TrimPrefix(ph, "~"))
}
