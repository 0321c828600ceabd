// Package errors provides coded, actionable errors for the spc command.
//
// Each registered code maps to a short message and a longer explanation.
// Errors can carry a file location (with the surrounding lines), a fix hint
// and an example:
//
//	err := errors.New("E104").
//	    WithLocation("spc.yaml", 7, 0).
//	    WithSuggestion("Use a frame rate such as 30")
//
//	fmt.Fprint(os.Stderr, err.Format())
//	// ERROR E104: Invalid frame rate
//	//
//	//   spc.yaml:7
//	//
//	//        5 │ capture:
//	//        6 │   width: 440
//	//   →    7 │   fps: 0
//	//        8 │ metrics: true
//	//
//	//   capture.fps must be between 1 and 240.
//	//
//	//   Hint: Use a frame rate such as 30
package errors
