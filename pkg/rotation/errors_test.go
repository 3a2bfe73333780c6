package rotation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/approtate/pkg/rotation"
)

func TestStageError(t *testing.T) {
	t.Parallel()

	cause := errors.New("403 Forbidden")
	err := fmt.Errorf("run: %w", &rotation.StageError{
		Stage: rotation.StagePersistSecret,
		Kind:  rotation.ErrVaultWrite,
		Err:   cause,
	})

	assert.ErrorIs(t, err, rotation.ErrVaultWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, rotation.ErrVaultRead)
	assert.Equal(t, rotation.StagePersistSecret, rotation.FailedStage(err))
	assert.Equal(t, "run: persist-secret: vault write failed: 403 Forbidden", err.Error())

	bare := &rotation.StageError{Stage: rotation.StageValidate, Kind: rotation.ErrConfiguration}
	assert.Equal(t, "validate: configuration error", bare.Error())
	assert.ErrorIs(t, bare, rotation.ErrConfiguration)

	assert.Equal(t, rotation.Stage(""), rotation.FailedStage(cause))
}
