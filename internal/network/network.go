// Package network describes the Stellar network the service operates on.
package network

import (
	"fmt"
	"strings"

	stellarnet "github.com/stellar/go/network"
)

// Asset symbols accepted by the API.
const (
	NativeSymbol = "XLM"
	StableSymbol = "USDC"
)

// Network holds the per-network constants every ledger component needs.
type Network struct {
	Name         string
	HorizonURL   string
	Passphrase   string
	StableCode   string
	StableIssuer string
}

const (
	testnetUSDCIssuer = "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"
	mainnetUSDCIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
)

// Resolve maps a network name to its constants. horizonOverride replaces
// the default Horizon URL when non-empty.
func Resolve(name, horizonOverride string) (Network, error) {
	var n Network
	switch strings.ToLower(name) {
	case "", "testnet":
		n = Network{
			Name:         "testnet",
			HorizonURL:   "https://horizon-testnet.stellar.org",
			Passphrase:   stellarnet.TestNetworkPassphrase,
			StableCode:   StableSymbol,
			StableIssuer: testnetUSDCIssuer,
		}
	case "mainnet", "public":
		n = Network{
			Name:         "mainnet",
			HorizonURL:   "https://horizon.stellar.org",
			Passphrase:   stellarnet.PublicNetworkPassphrase,
			StableCode:   StableSymbol,
			StableIssuer: mainnetUSDCIssuer,
		}
	case "memory":
		n = Network{
			Name:         "memory",
			Passphrase:   "Polo In-Memory Network ; 2024",
			StableCode:   StableSymbol,
			StableIssuer: testnetUSDCIssuer,
		}
	default:
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
	if horizonOverride != "" {
		n.HorizonURL = horizonOverride
	}
	return n, nil
}

// Symbols lists the asset symbols supported on n.
func (n Network) Symbols() []string {
	return []string{NativeSymbol, n.StableCode}
}
