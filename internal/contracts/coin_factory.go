// Package contracts holds ABI definitions for the on-chain contracts this
// service talks to.
package contracts

// CoinFactoryABI is the subset of the coin factory interface we use: the
// payable deploy call and the creation event carrying the new coin address.
const CoinFactoryABI = `[
  {
    "type": "function",
    "name": "deploy",
    "stateMutability": "payable",
    "inputs": [
      {"name": "payoutRecipient", "type": "address"},
      {"name": "platformReferrer", "type": "address"},
      {"name": "uri", "type": "string"},
      {"name": "name", "type": "string"},
      {"name": "symbol", "type": "string"}
    ],
    "outputs": [
      {"name": "coin", "type": "address"}
    ]
  },
  {
    "type": "event",
    "name": "CoinCreated",
    "anonymous": false,
    "inputs": [
      {"name": "payoutRecipient", "type": "address", "indexed": true},
      {"name": "platformReferrer", "type": "address", "indexed": true},
      {"name": "coin", "type": "address", "indexed": false},
      {"name": "uri", "type": "string", "indexed": false},
      {"name": "name", "type": "string", "indexed": false},
      {"name": "symbol", "type": "string", "indexed": false}
    ]
  }
]`
