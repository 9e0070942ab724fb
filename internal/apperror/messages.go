package apperror

// messages maps error codes to human-readable messages.
var messages = map[Code]string{
	CodeRequiredField:  "Required field is missing",
	CodeInvalidInput:   "Invalid input provided",
	CodeInvalidState:   "Invalid state for this operation",
	CodeNotFound:       "Resource not found",
	CodeInternalError:  "Internal error",
	CodeUnknownError:   "An unknown error occurred",
	CodeConfigError:    "Configuration error",
	CodeServiceTimeout: "Service request timeout",

	CodeProviderNotFound:      "No wallet provider available",
	CodeProviderUnavailable:   "Wallet provider is not responding",
	CodeWalletNotInstalled:    "Cached wallet is no longer installed",
	CodeNoAccounts:            "Wallet returned no accounts",
	CodeNegotiationRejected:   "Wallet rejected the account request",
	CodeBridgeSessionMissing:  "No remote bridge session stored",
	CodeBridgeConnectFailed:   "Failed to connect remote bridge",
	CodeChainUnsupported:      "Chain is not in the network registry",
	CodeChainIDInvalid:        "Malformed chain identifier",
	CodeNetworkSwitchRejected: "Provider rejected the network switch",

	CodeRPCError:           "RPC call failed",
	CodeRPCConnectFailed:   "Failed to connect to RPC endpoint",
	CodeBalanceFetchFailed: "Failed to fetch balance",
	CodeSubscribeFailed:    "Failed to establish subscription",
	CodeCircuitOpen:        "Circuit breaker is open",

	CodeStoreReadFailed:  "Failed to read from persistent store",
	CodeStoreWriteFailed: "Failed to write to persistent store",
}
