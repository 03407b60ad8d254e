// Package models defines domain entities and persistence interfaces for the spotrcpt receipt generator.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing resource server data
//   - [Listener] : The authenticated user's public profile summary
//   - [Track] : Song metadata as it appears on a receipt
//   - [TimeRange] : The affinity window the top tracks are computed over
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Receipt] : A generated listening receipt with its numbered [ReceiptLine] rows
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
