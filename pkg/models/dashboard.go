package models

// Dashboard widget names selectable via the widgets query parameter.
const (
	WidgetStages     = "stages"
	WidgetSources    = "sources"
	WidgetScores     = "scores"
	WidgetConversion = "conversion"
	WidgetOverdue    = "overdue"
)

var dashboardWidgets = map[string]bool{
	WidgetStages:     true,
	WidgetSources:    true,
	WidgetScores:     true,
	WidgetConversion: true,
	WidgetOverdue:    true,
}

// ValidWidget returns true if the widget name is known.
func ValidWidget(widget string) bool {
	return dashboardWidgets[widget]
}

// StageCount is the number of non-archived leads in one pipeline stage.
type StageCount struct {
	Stage string `json:"stage"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SourceCount is the number of non-archived leads from one channel.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ScoreBuckets partitions non-archived leads by score:
// high >= 70, medium 40-69, low < 40.
type ScoreBuckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Stats is the overview snapshot served by GET /api/stats.
type Stats struct {
	TotalLeads     int     `json:"total_leads"`
	TotalClients   int     `json:"total_clients"`
	WonCount       int     `json:"won_count"`
	LostCount      int     `json:"lost_count"`
	ConversionRate float64 `json:"conversion_rate"`
	StaleLeads     []*Lead `json:"stale_leads"`
}
