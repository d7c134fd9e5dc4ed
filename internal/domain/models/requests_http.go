package models

// Requests for the query HTTP endpoints. Defined in domain for consistency and reuse.

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
}

type PatternsRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" validate:"omitempty,timeframe"`
}

type PlansRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}
