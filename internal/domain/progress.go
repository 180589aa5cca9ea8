package domain

// StageProgress is one stage of the student's progression view with its
// latest submission and the latest grade of that submission attached.
type StageProgress struct {
	Stage      StageWithTools
	Submission *Submission
	Grade      *Grade
}

// AssignmentProgress is the derived progression state for one student.
// CurrentStageIndex is an index into Stages, or -1 when the assignment
// is finished and no enabled writing stage exists.
type AssignmentProgress struct {
	Stages            []StageProgress
	CurrentStageIndex int
	IsFinished        bool
}

// StageCounts summarizes a student's standing on one assignment, over
// enabled stages only.
type StageCounts struct {
	Enabled   int
	Completed int
	Graded    int
}
