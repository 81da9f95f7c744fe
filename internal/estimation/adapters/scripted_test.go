package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/internal/estimation"
)

func TestScriptedCamera_PlaysScriptAndHoldsLast(t *testing.T) {
	cam := NewScriptedCamera(NoFace, 3, 4)
	ctx := context.Background()

	_, ok := cam.Next()
	assert.False(t, ok, "closed camera yields no frames")

	require.NoError(t, cam.Open(ctx))
	assert.True(t, cam.IsOpen())

	var got []string
	for i := 0; i < 5; i++ {
		frame, ok := cam.Next()
		require.True(t, ok)
		faces, err := cam.DetectFaces(ctx, frame)
		require.NoError(t, err)
		if len(faces) == 0 {
			got = append(got, "none")
			continue
		}
		b, err := cam.ClassifyAge(ctx, frame, faces[0])
		require.NoError(t, err)
		got = append(got, map[estimation.AgeBracket]string{3: "3", 4: "4"}[b])
	}
	assert.Equal(t, []string{"none", "3", "4", "4", "4"}, got)

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
}

func TestScriptedCamera_FailOpen(t *testing.T) {
	cam := NewScriptedCamera(4)
	boom := errors.New("usb disconnected")
	cam.FailOpen(boom)
	assert.ErrorIs(t, cam.Open(context.Background()), boom)

	cam.FailOpen(nil)
	assert.NoError(t, cam.Open(context.Background()))
}

func TestScriptedCamera_DropEvery(t *testing.T) {
	cam := NewScriptedCamera(5)
	cam.DropEvery(2)
	require.NoError(t, cam.Open(context.Background()))

	_, ok1 := cam.Next()
	_, ok2 := cam.Next()
	_, ok3 := cam.Next()
	assert.True(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestScriptedCamera_EmptyScriptShowsNoFace(t *testing.T) {
	cam := NewScriptedCamera()
	require.NoError(t, cam.Open(context.Background()))
	frame, ok := cam.Next()
	require.True(t, ok)
	faces, err := cam.DetectFaces(context.Background(), frame)
	require.NoError(t, err)
	assert.Empty(t, faces)
	_, err = cam.ClassifyAge(context.Background(), frame, estimation.FaceRegion{})
	assert.Error(t, err)
}
