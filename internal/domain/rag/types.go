package rag

// SearchResultItem 单条检索结果:记录字段加上排序与校准信息
type SearchResultItem struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Industry        string          `json:"industry"`
	Funding         string          `json:"funding"`
	Location        string          `json:"location"`
	Founded         int             `json:"founded"`
	TeamSize        int             `json:"team_size"`
	HomepageURL     string          `json:"homepage_url,omitempty"`
	LinkedinURL     string          `json:"linkedin_url,omitempty"`
	SimilarityScore float64         `json:"similarity_score"` // 原始内积分数
	Rank            int             `json:"rank"`             // 1 起
	MatchScore      float64         `json:"match_score"`      // 校准后 0-100
	MatchLabel      string          `json:"match_label"`
	MatchIndicator  string          `json:"match_indicator"` // high | medium | low
	MatchReason     string          `json:"match_reason"`
	Calibration     CalibrationInfo `json:"calibration"`
}

// CalibrationInfo 校准过程摘要,便于排查分数漂移
type CalibrationInfo struct {
	ZScore         float64 `json:"z_score"`
	BackgroundMean float64 `json:"background_mean"`
	BackgroundStd  float64 `json:"background_std"`
}
