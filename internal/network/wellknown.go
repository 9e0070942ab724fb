package network

// Well-known chain ids.
const (
	EthereumMainnet ChainID = 1
	BNBSmartChain   ChainID = 56
	Polygon         ChainID = 137
	Arbitrum        ChainID = 42161
	Base            ChainID = 8453
)

// DefaultTable returns the built-in network table used when the host does
// not supply its own.
func DefaultTable() Table {
	return Table{
		EthereumMainnet: {ChainID: EthereumMainnet, Currency: "ETH", RPC: "https://eth.llamarpc.com"},
		BNBSmartChain:   {ChainID: BNBSmartChain, Currency: "BNB", RPC: "https://bsc-dataseed1.binance.org"},
		Polygon:         {ChainID: Polygon, Currency: "POL", RPC: "https://polygon-rpc.com"},
		Arbitrum:        {ChainID: Arbitrum, Currency: "ETH", RPC: "https://arb1.arbitrum.io/rpc"},
		Base:            {ChainID: Base, Currency: "ETH", RPC: "https://mainnet.base.org"},
	}
}
