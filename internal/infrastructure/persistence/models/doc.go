// Package models contains the GORM persistence models for the refund ledger.
// Domain types carry no ORM tags; each model converts to and from its domain
// counterpart with ToDomain and FromDomain.
package models
