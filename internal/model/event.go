package model

import "time"

// EventSubmission 使用者上架時填寫的活動資訊
type EventSubmission struct {
	Name     string `json:"name" binding:"required"`
	Venue    string `json:"venue" binding:"required"`
	DateTime string `json:"datetime" binding:"required"`
}

// EventCandidate 票務系統回傳的原始活動資料
type EventCandidate struct {
	ID    string `json:"eventId"`
	Name  string `json:"eventName"`
	Venue string `json:"facility"`
	Date  string `json:"eventDtStr"`
}

// MatchedEvent 比對結果，不落地保存
type MatchedEvent struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	Venue      string    `json:"venue"`
	Date       time.Time `json:"date"`
	NameScore  int       `json:"name_score"`
	VenueScore int       `json:"venue_score"`
}

// Ref 轉成保存在票券上的活動參照
func (m *MatchedEvent) Ref() *EventRef {
	return &EventRef{
		ExternalID: m.EventID,
		Name:       m.Name,
		Venue:      m.Venue,
		Date:       m.Date,
	}
}

// MatchEventRequest 活動比對請求
type MatchEventRequest struct {
	EventSubmission
	PatronID string `json:"patron_id"`
}
