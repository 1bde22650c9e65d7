package general

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

func GetCurrentFilepath() string {
	_, filename, _, _ := runtime.Caller(1)
	return filepath.Dir(filename)
}

func GetCurrentDir() string {
	return filepath.Dir(GetCurrentFilepath())
}

func GenerateUUID5StringFromByteArray(p []byte) string {
	UUID5Namespace := "f1c8f8d4-1a8e-4b2c-9d3f-5e6c7b8a9d0c"

	namespaceUUID, err := uuid.Parse(UUID5Namespace)
	if err != nil {
		slog.Warn(fmt.Sprintf("Error parsing namespace UUID: %+v", err))
	}
	uuid5 := uuid.NewSHA1(namespaceUUID, p)
	return uuid5.String()
}

func ItemInSlice[T comparable](slice []T, item T) bool {
	for _, sliceItem := range slice {
		if sliceItem == item {
			return true
		}
	}
	return false
}

func ChannelAtLoadLevel[T any](channel <-chan T, loadLevel float64) bool {
	return float64(len(channel)) >= float64(cap(channel))*loadLevel
}
