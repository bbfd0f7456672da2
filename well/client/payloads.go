package client

//AllocateTokensInput is input to the token allocation call
type AllocateTokensInput struct {
	Count int `json:"count"`
}

//AllocateTokensOutput is returned when tokens were drawn from the pool
type AllocateTokensOutput struct {
	Tokens []int64 `json:"tokens"`
}

//GetSupplyInput is input to the supply call
type GetSupplyInput struct{}

//GetSupplyOutput reports the current pool cardinality
type GetSupplyOutput struct {
	Available int64 `json:"available"`
}
