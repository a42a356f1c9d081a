/*
Package security provides cryptographic services for a Horology cluster:
at-rest encryption for CA key material, and a Certificate Authority (CA)
that issues the certificates Horology Kernel nodes serve TLS with.

# Cluster Encryption Key

At-rest protection is rooted in the cluster encryption key, a 32-byte
key derived from the cluster ID when a node is constructed:

	clusterKey = SHA-256(clusterID)  // 32 bytes for AES-256

The key encrypts the CA private key before it is persisted in the
durable store, using AES-256-GCM:

 1. Generate random 12-byte nonce
 2. Encrypt plaintext with AES-256-GCM
 3. Prepend nonce to ciphertext
 4. Store combined bytes: [nonce || ciphertext || tag]

GCM is authenticated encryption: a modified ciphertext, wrong key, or
wrong nonce all fail decryption rather than silently returning corrupted
plaintext. The key is held only in memory on each kernel node and is
recomputed deterministically from the cluster ID, so it never needs to
be shipped out of band.

# Certificate Authority

## Root CA

The cluster CA uses a hierarchical structure with a long-lived root
certificate:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key (high security)
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=Horology Root CA, O=Horology

The root CA is created when the first node bootstraps and stored
encrypted:

	Root Certificate: stored alongside the timer projection (public)
	Root Private Key: stored encrypted with the cluster key

The root key is only touched to issue new certificates, so it can stay
cold for most of a cluster's lifetime.

## Node Certificates

The CA issues a certificate to every Horology Kernel node, which the
node's gRPC listener serves TLS with:

	Node Certificate
	├── 90-day validity
	├── RSA 2048-bit key (faster operations)
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ServerAuth, ClientAuth
	├── Subject: CN=node-{nodeID}, O=Horology
	├── DNS Names: [node hostname]
	└── IP Addresses: [node IP]

The gRPC listener requests a client certificate but does not verify
it, and the Raft transport between kernel nodes is plain TCP that does
not use these certificates.

# Usage

## Setting Up the Certificate Authority

	import (
		"github.com/cuemby/horology/pkg/security"
		"github.com/cuemby/horology/pkg/storage"
	)

	store, err := storage.NewBoltStore("/var/lib/horology")
	if err != nil {
		panic(err)
	}

	clusterKey := security.DeriveKeyFromClusterID(clusterID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		panic(err)
	}

	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil { // generates root CA
		panic(err)
	}
	if err := ca.SaveToStore(); err != nil {
		panic(err)
	}

## Issuing Node Certificates

	nodeID := "kernel-1"
	dnsNames := []string{"kernel1.cluster.local", "localhost"}
	ipAddresses := []net.IP{net.ParseIP("192.168.1.10"), net.ParseIP("127.0.0.1")}

	tlsCert, err := ca.IssueNodeCertificate(nodeID, "node", dnsNames, ipAddresses)
	if err != nil {
		panic(err)
	}

# Integration Points

## Storage Integration

CA material is persisted via this package's CAStore interface
(implemented by both pkg/storage's BoltDB store and its in-memory store
used for single-node/test runs); root key material is encrypted with the
cluster key before it ever reaches disk.

## gRPC TLS Integration

A kernel node's gRPC listener serves TLS with its CA-issued
certificate, and the gateway or CLI verifies it against the CA
certificate:

	// Server-side (kernel node)
	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{nodeCert},
		ClientAuth:   tls.RequestClientCert,
		ClientCAs:    certPool,
	})

	// Client-side (gateway or CLI)
	creds := credentials.NewTLS(&tls.Config{
		RootCAs: certPool,
	})

# Security Considerations

This package protects against network eavesdropping (TLS), credential
tampering (authenticated encryption), and impersonation (CA-signed
certificates). It does not protect against a compromised cluster
encryption key, a compromised CA private key, or a compromised kernel
node — those require defense in depth (encrypted volumes, secure boot,
audited access) outside this package's scope.

# See Also

  - pkg/storage - CAStore-backed persistence for CA material
  - pkg/kernel - the Horology Kernel, the package's primary caller
*/
package security
