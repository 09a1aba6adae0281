package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RegisterEntityRequest struct {
	Name string `json:"name"`
}

type EntityResponse struct {
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
	Creator   string `json:"creator,omitempty"`
	Rank      int    `json:"rank,omitempty"`
}

type EntityListResponse struct {
	Items []EntityResponse `json:"items"`
}

type EntityVotesResponse struct {
	Name  string `json:"name"`
	Votes uint64 `json:"votes"`
}

type VoteResponse struct {
	Name      string `json:"name"`
	Voter     string `json:"voter"`
	VoteCount uint64 `json:"vote_count"`
}

type InitializeResponse struct {
	Admin string `json:"admin"`
}

type RemoveResponse struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
}

type UserVotesResponse struct {
	UserID string   `json:"user_id"`
	Names  []string `json:"names"`
}

type HasVotedResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Voted  bool   `json:"voted"`
}

type TotalsResponse struct {
	TotalAnimals uint64 `json:"total_animals"`
	TotalVotes   uint64 `json:"total_votes"`
}

type StatsResponse struct {
	TotalAnimals uint64 `json:"total_animals"`
	TotalVotes   uint64 `json:"total_votes"`
	HighestVotes uint64 `json:"highest_votes"`
}

type AdminResponse struct {
	Admin       string `json:"admin"`
	Initialized bool   `json:"initialized"`
}

type ScoreboardItem struct {
	Name  string `json:"name"`
	Votes uint64 `json:"votes"`
}

type ScoreboardResponse struct {
	Items []ScoreboardItem `json:"items"`
}
