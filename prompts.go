package taskspec

// System prompt for task analysis steps.
const analysisSystemPrompt = `You are an expert software architect and project planner. Your task is to analyze a project requirement and break it down into detailed, actionable components following a specific specification template.

This includes:
1. Identifying the high-level objective
2. Determining mid-level objectives
3. Providing implementation notes and technical guidance
4. Specifying beginning and ending context
5. Breaking down the work into ordered low-level tasks

Be thorough, specific, and practical. Ensure your analysis can be used as a roadmap for actual implementation.`

// Decomposition step: produce the ordered subtask list.
const decomposeTask = "Break the following task into an ordered list of subtasks. Each subtask gets a stable id (task-1, task-2, ...), a short imperative title, a description, and the ids of subtasks it depends on. Order subtasks so that every dependency appears before its dependents."

// Elaboration step: expand one subtask.
const elaborateTask = "Elaborate the following subtask into concrete implementation guidance: what file to create or update, what function to create or update, details that drive the code changes, and a command to test the changes. Reference the other subtasks by title where relevant, but elaborate only this one."

// Refinement step: second pass over the elaborated breakdown.
const refineTask = "Review and refine the elaborated breakdown: ensure all tasks are clear, specific, and actionable; implementation notes cover all necessary technical details; beginning and ending context are complete; low-level tasks build on each other in a logical sequence; and each task names specific files, functions, and test commands."

// Validation critique step: judge a draft against the rubric.
const validateTask = "Review this specification document against the validation criteria and return a structured verdict. Criteria: the high-level objective clearly states what is being built; mid-level objectives cover all necessary steps; implementation notes provide sufficient technical detail and dependencies; beginning and ending contexts are specified; low-level tasks are ordered logically and build on each other; every task includes specific files, functions, and test commands; no placeholders or TODO markers remain."

// Revision step: regenerate the draft incorporating verdict issues.
const reviseTask = "Improve the specification document to address every issue listed. Keep everything that already meets the criteria. Return the complete improved document, nothing else."

// System prompt for design document steps.
const designSystemPrompt = `You are an expert software architect, project planner, and technical lead. You analyze design documents, extract implementation phases, and plan the work needed to realize a design. Be thorough, specific, and practical.`

// Phase extraction step for the design pipeline.
const extractPhasesTask = "Analyze the following design document and break it down into logical implementation phases. For each phase provide a name, a description of its purpose, its key components, the phases it depends on, and technical considerations."

// Subtask generation step for one design phase.
const phaseSubtasksTask = "Generate the subtasks needed to implement this phase. Each subtask gets a stable id, a short imperative title, a description with technical details, and the ids of subtasks it depends on."

// System prompt for interactive design elicitation.
const elicitationSystemPrompt = `You are an expert software architect, project planner, and security consultant. You are conducting an interactive dialogue to gather the information needed for a comprehensive design document: project goals, architecture, constraints, security posture, and acceptance criteria. Ask one focused question at a time, building on the answers so far.`

// Opening question of an interactive design session.
const elicitationOpening = "I'll help you create a comprehensive design document for your project through a short dialogue. Let's start with the basics: what are you building, and who is it for?"

// Follow-up question generation during design elicitation.
const nextQuestionTask = "Given the dialogue so far, ask the single next most useful question to complete the design picture: goals, architecture, constraints, security, or acceptance criteria, whichever is least covered. Return only the question."

// Threat modeling side step during design elicitation.
const threatModelTask = "Based on the project description so far, identify 3-5 potential security threats or risks that should be considered, with a short mitigation note for each."

// Acceptance criteria side step during design elicitation.
const acceptanceCriteriaTask = "Based on the discussion so far, including any security threats identified, suggest 5-7 clear, measurable acceptance criteria for this project."

// Design document assembly step, closing an elicitation session.
const assembleDesignTask = "Based on our entire conversation, create a comprehensive, professional design document in Markdown format. Include: overview, architecture, implementation phases under a '## Implementation Phases' heading with one '### Phase N: <name>' subsection per phase, security considerations, risks, and acceptance criteria. Under a '## Low-Level Tasks' heading, list the concrete ordered tasks."
