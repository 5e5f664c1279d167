package sshutils

import (
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	TimeInBetweenSSHRetries = 2 * time.Second
	SSHDialTimeout          = 10 * time.Second
	SSHRetryAttempts        = 1
	SSHMaxRetryInterval     = 20 * time.Second
)

const (
	// ReadChunkSize is the most a single receive returns.
	ReadChunkSize = 2048

	TerminalType = "vt100"
	PtyHeight    = 80
	PtyWidth     = 200
)

// Older IOS images only offer CBC ciphers and group1/group14 SHA-1 key exchange, so they are
// appended after the modern defaults.
var (
	SupportedCiphers = []string{
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"chacha20-poly1305@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
		"3des-cbc",
	}

	SupportedKeyExchanges = []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}

	SupportedHostKeyAlgorithms = []string{
		ssh.KeyAlgoED25519,
		ssh.KeyAlgoECDSA256,
		ssh.KeyAlgoECDSA384,
		ssh.KeyAlgoECDSA521,
		ssh.KeyAlgoRSASHA512,
		ssh.KeyAlgoRSASHA256,
		ssh.KeyAlgoRSA,
	}
)
