package records

// SyncStatusSynced marks a record as durably ingested. Every record carries
// this value from the moment it is written; the core never changes it.
const SyncStatusSynced = "synced"

// Record models one persisted registration entry. Timestamps are unix seconds
// in UTC; SubmittedAtSeconds, CreatedAtSeconds and UpdatedAtSeconds all carry
// the ingestion instant and are never revised afterwards.
type Record struct {
	ID                 uint    `gorm:"column:id;primaryKey;autoIncrement"`
	LocalID            *string `gorm:"column:local_id;size:190;uniqueIndex:uniq_records_local_id"`
	ServerID           string  `gorm:"column:server_id;size:190;not null;index:idx_records_server_id"`
	Name               string  `gorm:"column:name;size:190;not null;default:'';index:idx_records_name"`
	Project            string  `gorm:"column:project;size:190;not null;default:'';index:idx_records_project"`
	Method             string  `gorm:"column:method;type:text;not null;default:''"`
	Content            string  `gorm:"column:content;type:text;not null;default:''"`
	Contact            string  `gorm:"column:contact;size:190;not null;default:''"`
	Payment            string  `gorm:"column:payment;size:190;not null;default:'';index:idx_records_payment"`
	AmountTWD          float64 `gorm:"column:amount_twd;not null;default:0;index:idx_records_amount_twd"`
	AmountRMB          float64 `gorm:"column:amount_rmb;not null;default:0;index:idx_records_amount_rmb"`
	BatchID            string  `gorm:"column:batch_id;size:190;not null;default:'';index:idx_records_batch_id"`
	DeviceID           string  `gorm:"column:device_id;size:190;not null;default:'';index:idx_records_device_id"`
	SubmittedAtSeconds int64   `gorm:"column:submitted_at_s;not null;index:idx_records_submitted_at"`
	CreatedAtSeconds   int64   `gorm:"column:created_at_s;not null;index:idx_records_created_at"`
	UpdatedAtSeconds   int64   `gorm:"column:updated_at_s;not null"`
	SyncStatus         string  `gorm:"column:sync_status;size:32;not null;default:'';index:idx_records_sync_status"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "records"
}

// RawItem is one client-submitted registration before normalization. Amount
// fields are `any` because clients send them as numbers or strings
// interchangeably; coercion happens during ingestion.
type RawItem struct {
	LocalID   string
	Name      string
	Project   string
	Method    string
	Content   string
	Contact   string
	Payment   string
	AmountTWD any
	AmountRMB any
}
