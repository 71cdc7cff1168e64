package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown              = "UNKNOWN"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeInvalidState         = "INVALID_STATE"
	CodeDuplicateMatchNumber = "DUPLICATE_MATCH_NUMBER"
	CodeInsufficientPlayers  = "INSUFFICIENT_PLAYERS"
	CodePlayerNotInMatch     = "PLAYER_NOT_IN_MATCH"
	CodeMissingScorer        = "MISSING_SCORER"
	CodeConstraintViolation  = "CONSTRAINT_VIOLATION"
)

var builtinMessages = map[string]map[Code]string{
	"en-US": {
		CodeUnknown:              "Something went wrong, please try again",
		CodeNotFound:             "{{if .Resource}}{{.Resource}} not found{{else}}Not found{{end}}",
		CodeInvalidArgument:      "Invalid request{{if .Field}}: {{.Field}}{{end}}",
		CodeInvalidState:         "Match {{.MatchID}} is {{.Status}}; this operation is not allowed",
		CodeDuplicateMatchNumber: "Match number {{.Number}} already exists for this session",
		CodeInsufficientPlayers:  "At least {{.Required}} players are needed, only {{.Present}} present",
		CodePlayerNotInMatch:     "Player {{.PlayerID}} is not on the {{if .Team}}{{.Team}}{{else}}match{{end}} roster",
		CodeMissingScorer:        "A goal needs a scorer unless it is an own goal",
		CodeConstraintViolation:  "The change conflicts with existing data",
	},
	"pt-BR": {
		CodeUnknown:              "Algo deu errado, tente novamente",
		CodeNotFound:             "{{if .Resource}}{{.Resource}} não encontrado{{else}}Não encontrado{{end}}",
		CodeInvalidArgument:      "Requisição inválida{{if .Field}}: {{.Field}}{{end}}",
		CodeInvalidState:         "A partida {{.MatchID}} está {{.Status}}; operação não permitida",
		CodeDuplicateMatchNumber: "A partida número {{.Number}} já existe nesta pelada",
		CodeInsufficientPlayers:  "São necessários ao menos {{.Required}} jogadores, só {{.Present}} presentes",
		CodePlayerNotInMatch:     "O jogador {{.PlayerID}} não está {{if .Team}}no time {{.Team}}{{else}}na partida{{end}}",
		CodeMissingScorer:        "Um gol precisa de autor, exceto gol contra",
		CodeConstraintViolation:  "A alteração conflita com dados existentes",
	},
}
