package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInsufficientFunds indicates that an operation would drive an account balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAuthFailed indicates that the supplied credential does not match the stored one.
var ErrAuthFailed = errors.New("authentication failed")

// ErrStorage indicates that the persistent store could not complete an atomic unit of work.
var ErrStorage = errors.New("storage failure")
