// Package chain is the Scroll Sepolia RPC layer: reserve and oracle reads for
// the market provider, balance checks, call-data encoding for the supported
// deposit paths, and the registerTask transaction that hands a prepared
// payload to the on-chain executor.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Scroll Sepolia deployment addresses.
var (
	// PoolAddress is the Aave V3 pool proxy.
	PoolAddress = common.HexToAddress("0x48914C788295b5db23aF2b5F0B3BE775C4eA9440")
	// GatewayAddress is the wrapped-token gateway that native ETH deposits go
	// through.
	GatewayAddress = common.HexToAddress("0x57ce905CfD7f986A929A26b006f797d181dB706e")
	// TaskRegistryAddress is the executor contract that queued transaction
	// payloads are registered with.
	TaskRegistryAddress = common.HexToAddress("0x5e38f31693CcAcFCA4D8b70882d8b696cDc24273")
)

// MinMultisigBalance is the smallest multisig balance (0.03 ETH in wei) that a
// deposit proposal will proceed with.
var MinMultisigBalance = new(big.Int).Mul(big.NewInt(3), exp10(16))

const poolABIJSON = `[{"inputs":[{"internalType":"address","name":"asset","type":"address"}],"name":"getReserveData","outputs":[{"components":[{"components":[{"internalType":"uint256","name":"data","type":"uint256"}],"internalType":"struct DataTypes.ReserveConfigurationMap","name":"configuration","type":"tuple"},{"internalType":"uint128","name":"liquidityIndex","type":"uint128"},{"internalType":"uint128","name":"currentLiquidityRate","type":"uint128"},{"internalType":"uint128","name":"variableBorrowIndex","type":"uint128"},{"internalType":"uint128","name":"currentVariableBorrowRate","type":"uint128"},{"internalType":"uint128","name":"currentStableBorrowRate","type":"uint128"},{"internalType":"uint40","name":"lastUpdateTimestamp","type":"uint40"},{"internalType":"uint16","name":"id","type":"uint16"},{"internalType":"address","name":"aTokenAddress","type":"address"},{"internalType":"address","name":"stableDebtTokenAddress","type":"address"},{"internalType":"address","name":"variableDebtTokenAddress","type":"address"},{"internalType":"address","name":"interestRateStrategyAddress","type":"address"},{"internalType":"uint128","name":"accruedToTreasury","type":"uint128"},{"internalType":"uint128","name":"unbacked","type":"uint128"},{"internalType":"uint128","name":"isolationModeTotalDebt","type":"uint128"}],"internalType":"struct DataTypes.ReserveData","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"address","name":"asset","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"address","name":"onBehalfOf","type":"address"},{"internalType":"uint16","name":"referralCode","type":"uint16"}],"name":"supply","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const gatewayABIJSON = `[{"inputs":[{"internalType":"address","name":"pool","type":"address"},{"internalType":"address","name":"onBehalfOf","type":"address"},{"internalType":"uint16","name":"referralCode","type":"uint16"}],"name":"depositETH","outputs":[],"stateMutability":"payable","type":"function"}]`

const oracleABIJSON = `[{"inputs":[],"name":"latestAnswer","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

const taskRegistryABIJSON = `[{"inputs":[{"internalType":"string","name":"taskId","type":"string"},{"internalType":"address","name":"target","type":"address"},{"internalType":"bytes","name":"data","type":"bytes"}],"name":"registerTask","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var (
	poolABI         = mustABI(poolABIJSON)
	gatewayABI      = mustABI(gatewayABIJSON)
	oracleABI       = mustABI(oracleABIJSON)
	taskRegistryABI = mustABI(taskRegistryABIJSON)
)

func mustABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// ReserveData mirrors the pool's per-asset reserve record.
type ReserveData struct {
	Configuration struct {
		Data *big.Int
	}
	LiquidityIndex              *big.Int
	CurrentLiquidityRate        *big.Int
	VariableBorrowIndex         *big.Int
	CurrentVariableBorrowRate   *big.Int
	CurrentStableBorrowRate     *big.Int
	LastUpdateTimestamp         *big.Int
	Id                          uint16
	ATokenAddress               common.Address
	StableDebtTokenAddress      common.Address
	VariableDebtTokenAddress    common.Address
	InterestRateStrategyAddress common.Address
	AccruedToTreasury           *big.Int
	Unbacked                    *big.Int
	IsolationModeTotalDebt      *big.Int
}

// Config carries what Dial needs. PrivateKey is the agent's hex-encoded
// signing key and may be empty for read-only use; RegisterTask then fails.
type Config struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string
}

// Client wraps a single RPC connection plus the agent's signing identity.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	address common.Address
}

// Dial connects to the configured RPC endpoint and derives the agent address
// from the private key when one is set.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: RPC URL is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	c := &Client{eth: eth, chainID: big.NewInt(cfg.ChainID)}
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.key = key
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// AgentAddress returns the signer's address, or the zero address in hex when
// no key was configured.
func (c *Client) AgentAddress() string {
	return c.address.Hex()
}

// NativeBalance returns the latest ETH balance of address in wei.
func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return balance, nil
}

// ReserveData reads the pool's reserve record for one asset.
func (c *Client) ReserveData(ctx context.Context, assetAddress string) (ReserveData, error) {
	if !common.IsHexAddress(assetAddress) {
		return ReserveData{}, fmt.Errorf("invalid asset address %q", assetAddress)
	}
	input, err := poolABI.Pack("getReserveData", common.HexToAddress(assetAddress))
	if err != nil {
		return ReserveData{}, fmt.Errorf("pack getReserveData: %w", err)
	}
	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &PoolAddress, Data: input}, nil)
	if err != nil {
		return ReserveData{}, fmt.Errorf("call getReserveData: %w", err)
	}
	results, err := poolABI.Unpack("getReserveData", output)
	if err != nil {
		return ReserveData{}, fmt.Errorf("unpack getReserveData: %w", err)
	}
	reserve := *abi.ConvertType(results[0], new(ReserveData)).(*ReserveData)
	return reserve, nil
}

// OraclePrice reads a Chainlink-style feed and scales the answer by the
// feed's decimals.
func (c *Client) OraclePrice(ctx context.Context, oracleAddress string) (float64, error) {
	if !common.IsHexAddress(oracleAddress) {
		return 0, fmt.Errorf("invalid oracle address %q", oracleAddress)
	}
	oracle := common.HexToAddress(oracleAddress)

	input, err := oracleABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &oracle, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	results, err := oracleABI.Unpack("decimals", output)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	decimals := *abi.ConvertType(results[0], new(uint8)).(*uint8)

	input, err = oracleABI.Pack("latestAnswer")
	if err != nil {
		return 0, fmt.Errorf("pack latestAnswer: %w", err)
	}
	output, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &oracle, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("call latestAnswer: %w", err)
	}
	results, err = oracleABI.Unpack("latestAnswer", output)
	if err != nil {
		return 0, fmt.Errorf("unpack latestAnswer: %w", err)
	}
	answer := *abi.ConvertType(results[0], new(*big.Int)).(**big.Int)

	scale := new(big.Float).SetInt(exp10(int64(decimals)))
	price, _ := new(big.Float).Quo(new(big.Float).SetInt(answer), scale).Float64()
	return price, nil
}

// RegisterTask submits the prepared payload to the task registry under taskID
// and returns the transaction hash.
func (c *Client) RegisterTask(ctx context.Context, taskID string, target string, callData []byte) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("chain: no signing key configured")
	}
	if !common.IsHexAddress(target) {
		return "", fmt.Errorf("invalid target address %q", target)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	registry := bind.NewBoundContract(TaskRegistryAddress, taskRegistryABI, c.eth, c.eth, c.eth)
	tx, err := registry.Transact(opts, "registerTask", taskID, common.HexToAddress(target), callData)
	if err != nil {
		return "", fmt.Errorf("register task %s: %w", taskID, err)
	}
	return tx.Hash().Hex(), nil
}

// DepositETHCallData encodes the gateway depositETH call crediting
// onBehalfOf. The deposited amount rides along as the transaction value.
func DepositETHCallData(onBehalfOf string) ([]byte, error) {
	if !common.IsHexAddress(onBehalfOf) {
		return nil, fmt.Errorf("invalid onBehalfOf address %q", onBehalfOf)
	}
	data, err := gatewayABI.Pack("depositETH", PoolAddress, common.HexToAddress(onBehalfOf), uint16(0))
	if err != nil {
		return nil, fmt.Errorf("pack depositETH: %w", err)
	}
	return data, nil
}

// SupplyCallData encodes a pool supply call for an ERC-20 asset.
func SupplyCallData(assetAddress string, amount *big.Int, onBehalfOf string) ([]byte, error) {
	if !common.IsHexAddress(assetAddress) {
		return nil, fmt.Errorf("invalid asset address %q", assetAddress)
	}
	if !common.IsHexAddress(onBehalfOf) {
		return nil, fmt.Errorf("invalid onBehalfOf address %q", onBehalfOf)
	}
	data, err := poolABI.Pack("supply", common.HexToAddress(assetAddress), amount, common.HexToAddress(onBehalfOf), uint16(0))
	if err != nil {
		return nil, fmt.Errorf("pack supply: %w", err)
	}
	return data, nil
}
