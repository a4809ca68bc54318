package analyze

// DefaultPrompt asks the model to compare the reference image against the
// current frame and reply with a Verdict.
const DefaultPrompt = `You will receive two images:
1. The first is the reference image, showing how the watched object should look.
2. The second is the current frame, showing the scene as it is now.
Compare the object in both images and reply with JSON according to these rules:
- "stolen": the original object is gone and its place is empty (only background remains).
- "replaced": the original object is gone and a completely different object is in its place (e.g. a different cup, a can, a piece of fruit).
- "ok": the original object is still in place, even if slightly moved, as long as it is clearly the same object.
JSON format:
{
  "status": "stolen" | "replaced" | "ok",
  "new_object_description": "null if missing or ok; a description of the new object if replaced",
  "danger_level": "low" | "medium" | "high",
  "reason": "short explanation of the judgement"
}
Notes:
1. If a human hand or body part is visible in the second image, decide whether the object is still there. If a hand is holding the object in the air, answer "stolen" (being taken).
2. If the status is "ok", also check whether the object is damaged and set danger_level according to the damage.
3. If a person or hand is visible, describe in reason whether gloves are worn, notable features, and whether other tools are being held.`
