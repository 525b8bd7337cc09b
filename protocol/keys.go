package protocol

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"strings"

	"github.com/Lvzhenqian/sshsftp/errors"
	"golang.org/x/crypto/ssh"
)

type KeyType string

const (
	KeyRSA     KeyType = "rsa"
	KeyECDSA   KeyType = "ecdsa"
	KeyEd25519 KeyType = "ed25519"
)

// KeySpec describes a key to generate. Bits is ignored for ed25519 and
// defaults to 3072 for rsa and 256 for ecdsa.
type KeySpec struct {
	Type       KeyType
	Bits       int
	Passphrase string
	Comment    string
}

// KeyMaterial holds an OpenSSH PEM private key and an authorized_keys line.
type KeyMaterial struct {
	PrivateKey string
	PublicKey  string
}

type KeyDetails struct {
	Type KeyType
	Size int
}

func GenerateKeyPair(spec KeySpec) (KeyMaterial, error) {
	var (
		priv crypto.Signer
		err  error
	)
	switch spec.Type {
	case KeyRSA, "":
		bits := spec.Bits
		if bits == 0 {
			bits = 3072
		}
		priv, err = rsa.GenerateKey(rand.Reader, bits)
	case KeyECDSA:
		var curve elliptic.Curve
		switch spec.Bits {
		case 0, 256:
			curve = elliptic.P256()
		case 384:
			curve = elliptic.P384()
		case 521:
			curve = elliptic.P521()
		default:
			return KeyMaterial{}, errors.Errorf("unsupported ecdsa size %d", spec.Bits)
		}
		priv, err = ecdsa.GenerateKey(curve, rand.Reader)
	case KeyEd25519:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	default:
		return KeyMaterial{}, errors.Errorf("unsupported key type %q", spec.Type)
	}
	if err != nil {
		return KeyMaterial{}, errors.Wrapf(err, "generate %s key", spec.Type)
	}

	var block *pem.Block
	if spec.Passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, spec.Comment, []byte(spec.Passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, spec.Comment)
	}
	if err != nil {
		return KeyMaterial{}, errors.Wrapf(err, "marshal private key")
	}

	sshPub, err := ssh.NewPublicKey(priv.Public())
	if err != nil {
		return KeyMaterial{}, errors.Wrapf(err, "create ssh public key")
	}
	public := strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(sshPub)), "\n")
	if spec.Comment != "" {
		public += " " + spec.Comment
	}

	return KeyMaterial{
		PrivateKey: string(pem.EncodeToMemory(block)),
		PublicKey:  public,
	}, nil
}

// GetKeyDetails reports the algorithm and size of a private key given as
// PEM material or a key file path.
func GetKeyDetails(privateKey, passphrase string) (KeyDetails, error) {
	content, err := keyMaterial(privateKey)
	if err != nil {
		return KeyDetails{}, err
	}
	var raw interface{}
	if passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(content, []byte(passphrase))
	} else {
		raw, err = ssh.ParseRawPrivateKey(content)
	}
	if err != nil {
		return KeyDetails{}, errors.Wrapf(err, "parse private key")
	}

	switch k := raw.(type) {
	case *rsa.PrivateKey:
		return KeyDetails{Type: KeyRSA, Size: k.N.BitLen()}, nil
	case *ecdsa.PrivateKey:
		return KeyDetails{Type: KeyECDSA, Size: k.Curve.Params().BitSize}, nil
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return KeyDetails{Type: KeyEd25519, Size: 256}, nil
	default:
		return KeyDetails{}, errors.Errorf("unsupported key %T", raw)
	}
}
