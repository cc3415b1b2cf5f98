package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// curveABI covers the events and views of the bonding-curve contract the indexer reads.
const curveABI = `[
  {"type":"event","name":"Trade","anonymous":false,"inputs":[
    {"name":"trader","type":"address","indexed":true},
    {"name":"isBuy","type":"bool","indexed":false},
    {"name":"tokenAmount","type":"uint256","indexed":false},
    {"name":"nativeAmount","type":"uint256","indexed":false},
    {"name":"step","type":"uint256","indexed":false}]},
  {"type":"event","name":"StepAdvanced","anonymous":false,"inputs":[
    {"name":"newStep","type":"uint256","indexed":false},
    {"name":"newPrice","type":"uint256","indexed":false}]},
  {"type":"event","name":"Graduated","anonymous":false,"inputs":[
    {"name":"tokensSold","type":"uint256","indexed":false},
    {"name":"nativeReserve","type":"uint256","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"function","name":"currentStep","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"currentPrice","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]}
]`

const (
	eventTrade        = "Trade"
	eventStepAdvanced = "StepAdvanced"
	eventGraduated    = "Graduated"

	methodCurrentStep  = "currentStep"
	methodCurrentPrice = "currentPrice"
)

// ParsedABI returns the parsed curve ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(curveABI))
}
