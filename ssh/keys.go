package ssh

import (
	"github.com/Lvzhenqian/sshsftp/fn"
	"github.com/Lvzhenqian/sshsftp/protocol"
)

// GetKeyDetails reports the algorithm and size of a private key given as
// PEM material or a key file path.
func GetKeyDetails(privateKey, passphrase string, callbacks ...fn.Callback[protocol.KeyDetails]) *fn.Future[protocol.KeyDetails] {
	return fn.Go(func() (protocol.KeyDetails, error) {
		return protocol.GetKeyDetails(privateKey, passphrase)
	}, callbacks...)
}

func GenerateKeyPair(spec protocol.KeySpec, callbacks ...fn.Callback[protocol.KeyMaterial]) *fn.Future[protocol.KeyMaterial] {
	return fn.Go(func() (protocol.KeyMaterial, error) {
		return protocol.GenerateKeyPair(spec)
	}, callbacks...)
}
