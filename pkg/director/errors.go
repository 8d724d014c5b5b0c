package director

import "errors"

var (
	// ErrNoAudioIntake is returned by New when the intake dependency is nil.
	ErrNoAudioIntake = errors.New("director: audio intake not configured")

	// ErrNoOutputSink is returned by New when the sink dependency is nil.
	ErrNoOutputSink = errors.New("director: output sink not configured")

	// ErrUnknownMic is returned by StartCalibration/ApplyCalibration for an
	// id not present in configuration.
	ErrUnknownMic = errors.New("director: unknown microphone id")

	// ErrNoCalibrationResult names the case of a mic with no completed
	// calibration session to apply. No function in this module returns it;
	// the HTTP apply handler reports a missing result as applied:false.
	ErrNoCalibrationResult = errors.New("director: no calibration result for mic")
)
