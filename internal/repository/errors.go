package repository

import "errors"

// レコードが見つからない場合の共通エラー
var ErrNotFound = errors.New("not found")
