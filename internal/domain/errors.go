package domain

import "errors"

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNoPrediction    = errors.New("no prediction found")
	ErrNoSnapshot      = errors.New("no metrics snapshot found")
)
