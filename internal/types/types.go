package types

type IsinRequest struct {
	Isin string `path:"isin"`
}

type Symbol struct {
	IexId    string `json:"iexId"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange,omitempty"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

type IsinResponse struct {
	Isin    string   `json:"isin"`
	Symbols []Symbol `json:"symbols"`
}

type ChartRequest struct {
	Period string `path:"period"`
	Symbol string `form:"symbol"`
}

type ChartPoint struct {
	Date           string `json:"date"`
	Close          string `json:"close"`
	Volume         string `json:"volume"`
	Change         string `json:"change"`
	ChangePercent  string `json:"changePercent"`
	ChangeOverTime string `json:"changeOverTime"`
}

type ChartResponse struct {
	Symbol   string       `json:"symbol"`
	Period   string       `json:"period"`
	Currency string       `json:"currency"`
	Data     []ChartPoint `json:"data"`
}

type SearchRequest struct {
	Term string `form:"term,optional"`
}

type SearchResponse struct {
	Term    string   `json:"term"`
	Symbols []Symbol `json:"symbols"`
}

type CatalogListReport struct {
	List     string `json:"list"`
	Skipped  bool   `json:"skipped"`
	Received int    `json:"received"`
	Stored   int    `json:"stored"`
	Invalid  int    `json:"invalid"`
	Error    string `json:"error,omitempty"`
}

type CatalogLoadResponse struct {
	RunId    string              `json:"runId"`
	Lists    []CatalogListReport `json:"lists"`
	Received int                 `json:"received"`
	Stored   int                 `json:"stored"`
	Invalid  int                 `json:"invalid"`
	Failed   int                 `json:"failed"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

type CrossrefRequest struct {
	Isins []string `json:"isins"`
	Force bool     `json:"force,optional"`
}

type CrossrefDeleteRequest struct {
	Isins []string `json:"isins,optional"`
}

type Figi struct {
	Figi     string `json:"figi"`
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	UniqueId string `json:"uniqueID"`
	ExchCode string `json:"exchCode,omitempty"`
}

type CrossrefItem struct {
	Isin    string `json:"isin"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Figis   []Figi `json:"figis"`
}

type CrossrefResponse struct {
	Items []CrossrefItem `json:"items"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
