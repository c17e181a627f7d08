package models

// GORM models for write-side analytics. The conversation flow never reads
// these tables; failures on this path are logged and swallowed.

import (
	"time"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchQuery represents search analytics
type SearchQuery struct {
	BaseModel
	QueryText       string    `json:"query_text" gorm:"not null"`
	UserSession     string    `json:"user_session"`
	ResultsCount    int       `json:"results_count" gorm:"default:0"`
	TopMatchType    string    `json:"top_match_type"`
	SearchTimestamp time.Time `json:"search_timestamp" gorm:"default:NOW()"`
	ResponseTimeMs  int       `json:"response_time_ms"`
	UserAgent       string    `json:"user_agent"`
	IPAddress       string    `json:"ip_address" gorm:"type:inet"`
}

// OrderRecord tracks every finalized order for reporting
type OrderRecord struct {
	BaseModel
	OrderID        string   `json:"order_id" gorm:"unique;not null"`
	UserSession    string   `json:"user_session"`
	ServiceCount   int      `json:"service_count"`
	TotalPrice     float64  `json:"total_price"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Services       string   `json:"services"` // comma-joined service names
}

// PopularQuery aggregates repeated searches
type PopularQuery struct {
	BaseModel
	QueryText         string    `json:"query_text" gorm:"unique;not null"`
	SearchCount       int       `json:"search_count" gorm:"default:1"`
	AvgResultsCount   float64   `json:"avg_results_count"`
	AvgResponseTimeMs int       `json:"avg_response_time_ms"`
	LastSearched      time.Time `json:"last_searched" gorm:"default:NOW()"`
}

// SystemHealth stores the latest health probe per dependency
type SystemHealth struct {
	BaseModel
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"check:status IN ('healthy','unhealthy','degraded')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// Repository interfaces

type SearchQueryRepository interface {
	Create(query *SearchQuery) error
	GetBySession(session string) ([]SearchQuery, error)
	GetRecentSearches(limit int) ([]SearchQuery, error)
}

type OrderRecordRepository interface {
	Create(order *OrderRecord) error
	GetByOrderID(orderID string) (*OrderRecord, error)
	GetBySession(session string) ([]OrderRecord, error)
}

type PopularQueryRepository interface {
	IncrementCount(queryText string) error
	UpdateStats(queryText string, resultsCount float64, responseTimeMs int) error
	GetTop(limit int) ([]PopularQuery, error)
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTimeMs int, errorMsg string) error
	GetLatest() ([]SystemHealth, error)
}
