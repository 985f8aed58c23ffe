package utils

import "github.com/mahirjain10/go-assets/internal/types"

const statusPattern = "status"

func InitStatusData(id string, userId string, status string, filename string, publicUrl string, errorMsg string) *types.StatusData {
	return &types.StatusData{ID: id, UserID: userId, Status: status, Filename: filename, PublicURL: publicUrl, ErrorMsg: errorMsg}
}

func InitStatusMessage(data *types.StatusData) *types.StatusMessage {
	return &types.StatusMessage{Pattern: statusPattern, Data: *data}
}
