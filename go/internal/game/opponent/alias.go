package opponent

// aliases are display names shown for the synthetic opponent.
var aliases = []string{
	"AlexPlayer", "GameMaster", "ProGamer", "TicTacPro", "XOXOKing",
	"GridWarrior", "BoardChamp", "MoveMaster", "StrategyPro", "WinSeeker",
	"CellDominator", "LineHunter", "CrossMaster", "ZeroExpert", "GridTactician",
}

// Alias picks a display name for the synthetic opponent of one session.
func Alias(rng Rand) string {
	if rng == nil {
		rng = DefaultRand
	}
	return aliases[rng.Intn(len(aliases))]
}
