package chain

// Minimal contract ABIs: just the functions the core calls.
const (
	erc20ABIJSON = `[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"type":"uint256"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
	]`

	curveABIJSON = `[
		{"name":"calculateBuyCost","type":"function","stateMutability":"view","inputs":[{"name":"tokensOut","type":"uint256"}],"outputs":[{"type":"uint256"}]},
		{"name":"calculateSellReturn","type":"function","stateMutability":"view","inputs":[{"name":"tokensIn","type":"uint256"}],"outputs":[{"type":"uint256"}]},
		{"name":"getCurveInfo","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"currentPrice","type":"uint256"},{"name":"sold","type":"uint256"},{"name":"reserve","type":"uint256"},{"name":"availableSupply","type":"uint256"}]},
		{"name":"buy","type":"function","stateMutability":"payable","inputs":[{"name":"tokensOut","type":"uint256"},{"name":"maxMIn","type":"uint256"}],"outputs":[{"name":"mCost","type":"uint256"}]},
		{"name":"sell","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokensIn","type":"uint256"},{"name":"minMOut","type":"uint256"}],"outputs":[{"name":"mOut","type":"uint256"}]}
	]`

	factoryABIJSON = `[
		{"name":"getPair","type":"function","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]}
	]`

	pairABIJSON = `[
		{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
		{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]}
	]`

	routerABIJSON = `[
		{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`
)
