package upload

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
)

func Test_createConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   UploadInput
		want    uploadConfig
		wantErr bool
	}{
		{
			name: "Missing session endpoint",
			input: UploadInput{
				FilePath:  "/tmp/file.bin",
				TotalSize: 100,
			},
			wantErr: true,
		},
		{
			name: "Blank session endpoint",
			input: UploadInput{
				SessionEndpoint: "  ",
				FilePath:        "/tmp/file.bin",
				TotalSize:       100,
			},
			wantErr: true,
		},
		{
			name: "Missing total size",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				FilePath:        "/tmp/file.bin",
			},
			wantErr: true,
		},
		{
			name: "Negative total size",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				FilePath:        "/tmp/file.bin",
				TotalSize:       -1,
			},
			wantErr: true,
		},
		{
			name: "Both file path and URL",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				FilePath:        "/tmp/file.bin",
				URL:             "https://cdn.example.com/file.bin",
				TotalSize:       100,
			},
			wantErr: true,
		},
		{
			name: "Neither file path nor URL",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				TotalSize:       100,
			},
			wantErr: true,
		},
		{
			name: "Negative chunk size",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				FilePath:        "/tmp/file.bin",
				TotalSize:       100,
				ChunkSize:       -1,
			},
			wantErr: true,
		},
		{
			name: "Defaults applied",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				FilePath:        "/tmp/file.bin",
				TotalSize:       100,
			},
			want: uploadConfig{
				FilePath:        "/tmp/file.bin",
				SessionEndpoint: "https://api.example.com/upload",
				TotalSize:       100,
				Metadata:        map[string]interface{}{},
				ChunkSize:       16 * 1024 * 1024,
			},
		},
		{
			name: "Explicit values preserved",
			input: UploadInput{
				SessionEndpoint: "https://api.example.com/upload",
				URL:             "https://cdn.example.com/file.bin",
				SpoolToDisk:     true,
				TotalSize:       1024,
				AccessToken:     "secret-token",
				Metadata:        map[string]interface{}{"name": "file.bin"},
				ChunkSize:       512 * 1024,
			},
			want: uploadConfig{
				URL:             "https://cdn.example.com/file.bin",
				SpoolToDisk:     true,
				SessionEndpoint: "https://api.example.com/upload",
				TotalSize:       1024,
				AccessToken:     "secret-token",
				Metadata:        map[string]interface{}{"name": "file.bin"},
				ChunkSize:       512 * 1024,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := uploader{
				logger:  log.NewLogger(),
				envRepo: fakeEnvRepo{envVars: map[string]string{}},
			}
			got, err := step.createConfig(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("createConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				var configErr ConfigError
				if !errors.As(err, &configErr) {
					t.Errorf("createConfig() error = %v, expected a ConfigError", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("createConfig() got = %v, want %v", got, tt.want)
			}
		})
	}
}
