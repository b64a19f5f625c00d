package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"mintgate/gateway"
	"mintgate/native/sale"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "allowlist-root":
		err = cmdAllowListRoot(os.Args[2:])
	case "allowlist-proof":
		err = cmdAllowListProof(os.Args[2:])
	case "digest":
		err = cmdDigest(os.Args[2:])
	case "sign":
		err = cmdSign(os.Args[2:])
	case "admin-token":
		err = cmdAdminToken(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mintgate-cli <command> [flags]

commands:
  allowlist-root   compute the Merkle root for an allow-list manifest
  allowlist-proof  compute the membership proof for one address
  digest           compute a purchase authorization digest
  sign             sign a purchase authorization digest
  admin-token      issue an admin bearer token`)
}

// manifest is the YAML allow-list format: a flat list of hex addresses.
type manifest struct {
	Addresses []string `yaml:"addresses"`
}

func loadManifest(path string) ([]sale.Address, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Addresses) == 0 {
		return nil, fmt.Errorf("manifest lists no addresses")
	}
	addrs := make([]sale.Address, 0, len(m.Addresses))
	for _, entry := range m.Addresses {
		addr, err := parseAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", entry, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func cmdAllowListRoot(args []string) error {
	fs := flag.NewFlagSet("allowlist-root", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "Path to the allow-list YAML manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addrs, err := loadManifest(*manifestPath)
	if err != nil {
		return err
	}
	tree := sale.NewAllowListTree(addrs)
	root := tree.Root()
	fmt.Printf("0x%s\n", hex.EncodeToString(root[:]))
	return nil
}

func cmdAllowListProof(args []string) error {
	fs := flag.NewFlagSet("allowlist-proof", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "Path to the allow-list YAML manifest")
	addressHex := fs.String("address", "", "Member address to prove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addrs, err := loadManifest(*manifestPath)
	if err != nil {
		return err
	}
	addr, err := parseAddress(*addressHex)
	if err != nil {
		return err
	}
	tree := sale.NewAllowListTree(addrs)
	proof, ok := tree.Proof(addr)
	if !ok {
		return fmt.Errorf("address is not in the manifest")
	}
	for _, node := range proof {
		fmt.Printf("0x%s\n", hex.EncodeToString(node[:]))
	}
	return nil
}

func cmdDigest(args []string) error {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	buyerHex := fs.String("buyer", "", "Buyer address")
	instanceHex := fs.String("instance", "", "Sale instance address")
	saltRaw := fs.String("salt", "", "Decimal salt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	digest, err := digestFromFlags(*buyerHex, *instanceHex, *saltRaw)
	if err != nil {
		return err
	}
	fmt.Printf("0x%s\n", hex.EncodeToString(digest[:]))
	return nil
}

func cmdSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyHex := fs.String("key", "", "Hex-encoded signer private key")
	buyerHex := fs.String("buyer", "", "Buyer address")
	instanceHex := fs.String("instance", "", "Sale instance address")
	saltRaw := fs.String("salt", "", "Decimal salt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(*keyHex), "0x"))
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}
	digest, err := digestFromFlags(*buyerHex, *instanceHex, *saltRaw)
	if err != nil {
		return err
	}
	signature, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return err
	}
	fmt.Printf("0x%s\n", hex.EncodeToString(signature))
	return nil
}

func cmdAdminToken(args []string) error {
	fs := flag.NewFlagSet("admin-token", flag.ExitOnError)
	secret := fs.String("secret", "", "Admin JWT secret")
	subject := fs.String("subject", "admin", "Token subject")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*secret) == "" {
		return fmt.Errorf("secret required")
	}
	auth := gateway.NewAuthenticator(gateway.AuthConfig{HMACSecret: *secret, Issuer: "mintgate"})
	token, err := auth.IssueToken(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func digestFromFlags(buyerHex, instanceHex, saltRaw string) ([32]byte, error) {
	var digest [32]byte
	buyer, err := parseAddress(buyerHex)
	if err != nil {
		return digest, fmt.Errorf("buyer: %w", err)
	}
	instance, err := parseAddress(instanceHex)
	if err != nil {
		return digest, fmt.Errorf("instance: %w", err)
	}
	salt, ok := new(big.Int).SetString(strings.TrimSpace(saltRaw), 10)
	if !ok || salt.Sign() < 0 {
		return digest, fmt.Errorf("malformed salt")
	}
	digest, err = sale.AuthorizationDigest(buyer, instance, salt)
	if err != nil {
		return digest, fmt.Errorf("salt: %w", err)
	}
	return digest, nil
}

func parseAddress(raw string) (sale.Address, error) {
	var addr sale.Address
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(addr) {
		return addr, fmt.Errorf("malformed address")
	}
	copy(addr[:], b)
	return addr, nil
}
