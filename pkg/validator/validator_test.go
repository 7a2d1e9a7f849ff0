package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type messagePayload struct {
	Content  string `json:"content" validate:"required_without=FileName,max=4000"`
	FileName string `json:"file_name" validate:"required_without=Content"`
}

func TestValidateStructRequiredWithout(t *testing.T) {
	require.NoError(t, ValidateStruct(messagePayload{Content: "hello"}))
	require.NoError(t, ValidateStruct(messagePayload{FileName: "contract.pdf"}))

	err := ValidateStruct(messagePayload{})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "content", failures[0].Field)
}
