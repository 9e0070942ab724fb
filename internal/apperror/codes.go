package apperror

// Code represents a unique error code for the application.
type Code string

// General error codes
const (
	CodeRequiredField  Code = "REQUIRED_FIELD"
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInternalError  Code = "INTERNAL_ERROR"
	CodeUnknownError   Code = "UNKNOWN_ERROR"
	CodeConfigError    Code = "CONFIGURATION_ERROR"
	CodeServiceTimeout Code = "SERVICE_TIMEOUT"
)

// Wallet connection error codes
const (
	CodeProviderNotFound      Code = "PROVIDER_NOT_FOUND"
	CodeProviderUnavailable   Code = "PROVIDER_UNAVAILABLE"
	CodeWalletNotInstalled    Code = "WALLET_NOT_INSTALLED"
	CodeNoAccounts            Code = "NO_ACCOUNTS"
	CodeNegotiationRejected   Code = "NEGOTIATION_REJECTED"
	CodeBridgeSessionMissing  Code = "BRIDGE_SESSION_MISSING"
	CodeBridgeConnectFailed   Code = "BRIDGE_CONNECT_FAILED"
	CodeChainUnsupported      Code = "CHAIN_UNSUPPORTED"
	CodeChainIDInvalid        Code = "CHAIN_ID_INVALID"
	CodeNetworkSwitchRejected Code = "NETWORK_SWITCH_REJECTED"
)

// RPC and balance error codes
const (
	CodeRPCError           Code = "RPC_ERROR"
	CodeRPCConnectFailed   Code = "RPC_CONNECT_FAILED"
	CodeBalanceFetchFailed Code = "BALANCE_FETCH_FAILED"
	CodeSubscribeFailed    Code = "SUBSCRIBE_FAILED"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
)

// Storage error codes
const (
	CodeStoreReadFailed  Code = "STORE_READ_FAILED"
	CodeStoreWriteFailed Code = "STORE_WRITE_FAILED"
)
